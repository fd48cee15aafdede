// Package s3blob implements the opportunity archive sink on AWS SDK v2. Any
// S3-compatible store works (MinIO, Cloudflare R2) via a custom endpoint,
// which is also how the tests and local compose setups run it.
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig holds the connection settings for an S3-compatible object
// store.
type ClientConfig struct {
	// Endpoint is the S3-compatible endpoint URL, e.g. "http://localhost:9000"
	// for a local MinIO. Leave empty for standard AWS S3.
	Endpoint string

	// Region is the AWS region or the provider's equivalent.
	Region string

	// Bucket is the bucket all archive objects go to.
	Bucket string

	// AccessKey and SecretKey are the static credentials. Ambient AWS
	// credentials are deliberately not consulted when these are set.
	AccessKey string
	SecretKey string

	// UseSSL picks the scheme when Endpoint is given without one.
	UseSSL bool

	// ForcePathStyle forces path-style addressing (bucket in the path rather
	// than the subdomain), required by MinIO and most compatible providers.
	ForcePathStyle bool
}

// Client wraps the AWS S3 SDK client plus the configured bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New creates an S3 client from the given configuration, wiring credentials,
// region, endpoint override, and path-style addressing.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &Client{
		s3:     s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
	}, nil
}

// Health performs a HeadBucket call to verify connectivity and permissions.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: head bucket %s: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op kept for symmetry with the other wired clients; the S3
// HTTP client needs no explicit teardown.
func (c *Client) Close() error {
	return nil
}

// S3 returns the underlying AWS SDK client.
func (c *Client) S3() *s3.Client {
	return c.s3
}

// Bucket returns the configured bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

// normalizeEndpoint prepends a scheme when the configured endpoint lacks one.
func normalizeEndpoint(endpoint string, useSSL bool) string {
	parsed, err := url.Parse(endpoint)
	if err == nil && parsed.Scheme != "" {
		return endpoint
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return scheme + "://" + endpoint
}
