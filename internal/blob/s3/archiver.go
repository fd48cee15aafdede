package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liqtrack/internal/domain"
)

// ArchiveImpl implements domain.Archiver by serializing expired arbitrage
// opportunities to JSONL and uploading the batch to object storage.
//
// Deletion of archived rows from the primary store is intentionally not done
// here; that is a separate, explicit step after the archive is verified.
type ArchiveImpl struct {
	writer domain.BlobWriter
	prefix string
}

// NewArchiver creates an archiver writing under the given key prefix, e.g.
// "archive/opportunities".
func NewArchiver(writer domain.BlobWriter, prefix string) *ArchiveImpl {
	if prefix == "" {
		prefix = "archive/opportunities"
	}
	return &ArchiveImpl{writer: writer, prefix: prefix}
}

// ArchiveOpportunities uploads one JSONL object containing opps and returns
// the object key. An empty batch uploads nothing and returns "".
func (a *ArchiveImpl) ArchiveOpportunities(ctx context.Context, opps []domain.ArbitrageOpportunity, asOf time.Time) (string, error) {
	if len(opps) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, opp := range opps {
		if err := enc.Encode(opp); err != nil {
			return "", fmt.Errorf("s3blob: encode opportunity %s: %w", opp.ID, err)
		}
	}

	key := fmt.Sprintf("%s/%s/opportunities-%s.jsonl",
		a.prefix,
		asOf.UTC().Format("2006/01/02"),
		asOf.UTC().Format("20060102T150405Z"),
	)

	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive opportunities: %w", err)
	}
	return key, nil
}

// Compile-time interface checks.
var (
	_ domain.Archiver   = (*ArchiveImpl)(nil)
	_ domain.BlobWriter = (*Writer)(nil)
)
