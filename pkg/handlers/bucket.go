package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/yllibed/httpserver/pkg/server"
)

// S3API is the subset of the S3 client used by Bucket. *s3.Client satisfies
// it.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Bucket serves S3 objects below a path prefix. Object metadata is read
// during dispatch; the object body is fetched once the response is written
// and streamed with its Content-Length.
//
// Missing objects are left to later handlers.
type Bucket struct {
	client    S3API
	bucket    string
	prefix    string
	keyPrefix string
	logger    *slog.Logger
}

// BucketOption configures a Bucket.
type BucketOption func(*Bucket)

// WithKeyPrefix prepends prefix to every object key.
func WithKeyPrefix(prefix string) BucketOption {
	return func(b *Bucket) { b.keyPrefix = strings.Trim(prefix, "/") }
}

// WithBucketLogger sets the logger.
func WithBucketLogger(logger *slog.Logger) BucketOption {
	return func(b *Bucket) { b.logger = logger }
}

// NewBucket returns a Bucket serving bucket under the path prefix.
//
// Example client setup:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	b := handlers.NewBucket(s3.NewFromConfig(cfg), "my-bucket", "/assets")
func NewBucket(client S3API, bucket, prefix string, opts ...BucketOption) *Bucket {
	b := &Bucket{
		client: client,
		bucket: bucket,
		prefix: normalizePrefix(prefix),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default().With("component", "bucket")
	}
	return b
}

// HandleRequest implements server.Handler.
func (b *Bucket) HandleRequest(ctx context.Context, req *server.Request, relativePath string) error {
	if !strings.EqualFold(req.Method(), "GET") {
		return nil
	}
	sub, ok := matchPrefix(stripQuery(relativePath), b.prefix)
	if !ok {
		return nil
	}
	rel, ok := cleanRelPath(sub)
	if !ok || rel == "" {
		return nil
	}
	key := rel
	if b.keyPrefix != "" {
		key = b.keyPrefix + "/" + rel
	}

	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			b.logger.Debug("object not found", "bucket", b.bucket, "key", key)
			return nil
		}
		return fmt.Errorf("handlers: head object %s: %w", key, err)
	}

	contentType := aws.ToString(head.ContentType)
	if contentType == "" {
		contentType = contentTypeOf(key)
	}

	header := make(server.Header)
	if etag := aws.ToString(head.ETag); etag != "" {
		header.Set("ETag", etag)
	}
	if head.LastModified != nil {
		header.Set("Last-Modified", head.LastModified.UTC().Format(http.TimeFormat))
	}
	if cc := aws.ToString(head.CacheControl); cc != "" {
		header.Set("Cache-Control", cc)
	}

	req.SetStreamResponse(contentType, func(ctx context.Context) (io.ReadCloser, int64, error) {
		return b.open(ctx, key)
	}, server.WithHeaders(header))
	return nil
}

func (b *Bucket) open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	start := time.Now()
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("handlers: get object %s: %w", key, err)
	}
	length := int64(-1)
	if out.ContentLength != nil {
		length = *out.ContentLength
	}
	b.logger.Debug("object opened", "bucket", b.bucket, "key", key, "length", length, "duration", time.Since(start))
	return out.Body, length, nil
}

// String identifies the handler in logs.
func (b *Bucket) String() string { return "bucket " + b.bucket }

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
