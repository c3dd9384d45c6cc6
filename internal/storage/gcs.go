package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ticketsync/internal/config"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

// GCS writes attachments to a Cloud Storage bucket. Writes are conditional on
// the object not existing, so a concurrent duplicate upload is a no-op.
type GCS struct {
	client  *storage.Client
	bucket  *storage.BucketHandle
	name    string
	prefix  string
	baseURL string
	logger  *slog.Logger
}

// NewGCS builds a GCS sink using application default credentials. A custom
// endpoint targets an emulator.
func NewGCS(ctx context.Context, cfg config.Storage, logger *slog.Logger) (*GCS, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "storage.bucket is required for gcs", nil)
	}
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "create GCS client", err)
	}
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		base = "https://storage.googleapis.com/" + cfg.Bucket
	}
	return &GCS{
		client:  client,
		bucket:  client.Bucket(cfg.Bucket),
		name:    cfg.Bucket,
		prefix:  cfg.Prefix,
		baseURL: base,
		logger:  logging.NewComponentLogger(logger, "storage"),
	}, nil
}

func (g *GCS) Type() string { return config.StorageGCS }

func (g *GCS) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.bucket.Object(objectName(g.prefix, key)).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, services.Wrap(services.ErrTransient, "storage", "attrs", key, err)
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

func (g *GCS) Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error) {
	object := objectName(g.prefix, key)
	writer := g.bucket.Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	n, err := io.Copy(writer, r)
	if err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			return 0, nil
		}
		return 0, services.Wrap(services.ErrTransient, "storage", "put", key, err)
	}
	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			g.logger.Debug("object already exists; skipping",
				logging.String("bucket", g.name),
				logging.String("object", object),
			)
			return 0, nil
		}
		return 0, services.Wrap(services.ErrTransient, "storage", "finalize", key, fmt.Errorf("close writer: %w", err))
	}
	return n, nil
}

func (g *GCS) Location(key string) string {
	return g.baseURL + "/" + objectName(g.prefix, key)
}

func (g *GCS) Close() error {
	return g.client.Close()
}
