package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// partSize is the upload part size (8 MiB). Archive batches are usually a
// single part; the uploader only splits when a flush grows past this.
const partSize int64 = 8 * 1024 * 1024

// Writer implements domain.BlobWriter on an S3-compatible backend.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// NewWriter creates a Writer that uploads objects to the given client's
// configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		uploader: manager.NewUploader(c.S3(), func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
		bucket: c.Bucket(),
	}
}

// Put streams data to the given key. The upload manager buffers in partSize
// chunks and switches to a multipart upload transparently when the payload
// outgrows a single part, so callers never size their batches around S3
// limits.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	}

	if _, err := w.uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}
