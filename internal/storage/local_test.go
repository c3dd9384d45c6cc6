package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ticketsync/internal/config"
	"ticketsync/internal/services"
	"ticketsync/internal/storage"
	"ticketsync/internal/testsupport"
)

func TestLocalPutAndExists(t *testing.T) {
	dir := t.TempDir()
	sink, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()
	key := storage.Key(42, "report.pdf")
	if key != "42/report.pdf" {
		t.Fatalf("Key = %q", key)
	}

	if ok, err := sink.Exists(ctx, key); err != nil || ok {
		t.Fatalf("Exists before put = %v, %v", ok, err)
	}
	n, err := sink.Put(ctx, key, strings.NewReader("hello"), "application/pdf")
	if err != nil || n != 5 {
		t.Fatalf("Put = %d, %v", n, err)
	}
	if ok, err := sink.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("Exists after put = %v, %v", ok, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "42", "report.pdf"))
	if err != nil || string(data) != "hello" {
		t.Fatalf("file content = %q, %v", data, err)
	}
	if loc := sink.Location(key); !strings.HasPrefix(loc, "file://") || !strings.HasSuffix(loc, "/42/report.pdf") {
		t.Fatalf("Location = %q", loc)
	}
	if sink.Type() != config.StorageLocal {
		t.Fatalf("Type = %q", sink.Type())
	}
}

func TestOpenSelectsBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sink, err := storage.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer sink.Close()
	if sink.Type() != config.StorageLocal {
		t.Fatalf("Type = %q, want local", sink.Type())
	}

	cfg.Storage.Type = "ftp"
	if _, err := storage.Open(context.Background(), cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Open(ftp) err = %v, want ErrConfiguration", err)
	}

	cfg.Storage.Type = config.StorageS3
	cfg.Storage.Bucket = ""
	if _, err := storage.Open(context.Background(), cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("Open(s3 without bucket) err = %v, want ErrConfiguration", err)
	}
}
