package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"ticketsync/internal/config"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// s3API is the subset of the S3 client the sink uses.
type s3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 writes attachments to an S3-compatible bucket.
type S3 struct {
	client  s3API
	bucket  string
	prefix  string
	baseURL string
	logger  *slog.Logger
}

// NewS3 builds an S3 sink from the default AWS credential chain. A custom
// endpoint switches to path-style addressing for S3-compatible servers.
func NewS3(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*S3, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "storage.bucket is required for s3", nil)
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "load AWS config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3WithClient(client, cfg, logger), nil
}

func newS3WithClient(client s3API, cfg config.Storage, logger *slog.Logger) *S3 {
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		if cfg.Endpoint != "" {
			base = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}
	return &S3{
		client:  client,
		bucket:  cfg.Bucket,
		prefix:  cfg.Prefix,
		baseURL: base,
		logger:  logging.NewComponentLogger(logger, "storage"),
	}
}

func (s *S3) Type() string { return config.StorageS3 }

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(s.prefix, key)),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, services.Wrap(services.ErrTransient, "storage", "head", key, err)
}

func isS3NotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound
}

// Put spools r to a temporary file so the SDK can sign a seekable body.
func (s *S3) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	spool, err := os.CreateTemp("", "ticketsync-s3-*")
	if err != nil {
		return 0, fmt.Errorf("create spool file: %w", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()
	n, err := io.Copy(spool, r)
	if err != nil {
		return 0, services.Wrap(services.ErrTransient, "storage", "spool", key, err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind spool file: %w", err)
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(objectName(s.prefix, key)),
		Body:          spool,
		ContentLength: aws.Int64(n),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, services.Wrap(services.ErrTransient, "storage", "put", key, err)
	}
	s.logger.Debug("uploaded attachment",
		logging.String("bucket", s.bucket),
		logging.String("key", objectName(s.prefix, key)),
		logging.Int64("bytes", n),
	)
	return n, nil
}

func (s *S3) Location(key string) string {
	return s.baseURL + "/" + objectName(s.prefix, key)
}

func (s *S3) Close() error { return nil }
