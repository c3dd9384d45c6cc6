package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"ticketsync/internal/config"
	"ticketsync/internal/services"
)

// Sink is an attachment destination.
type Sink interface {
	// Type returns the storage type recorded in the tracker.
	Type() string
	// Exists reports whether key has already been written.
	Exists(ctx context.Context, key string) (bool, error)
	// Put streams r to key and returns the number of bytes written.
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	// Location returns the saved location recorded for key.
	Location(key string) string
	Close() error
}

// Key builds the relative object key for a ticket's attachment file.
func Key(ticketID int64, fileName string) string {
	return path.Join(strconv.FormatInt(ticketID, 10), fileName)
}

func objectName(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// Open builds the sink selected by cfg.Storage.Type.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Sink, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", "config is nil", nil)
	}
	switch cfg.Storage.Type {
	case config.StorageLocal, "":
		return asSink(NewLocal(cfg.Paths.AttachmentDir))
	case config.StorageS3:
		return asSink(NewS3(ctx, cfg.Storage, logger))
	case config.StorageGCS:
		return asSink(NewGCS(ctx, cfg.Storage, logger))
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open",
			fmt.Sprintf("unsupported storage type %q", cfg.Storage.Type), nil)
	}
}

// asSink drops the concrete pointer on error so callers never see a non-nil
// interface holding a nil sink.
func asSink[S Sink](s S, err error) (Sink, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}
