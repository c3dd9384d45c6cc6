package source_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"ticketsync/internal/services"
	"ticketsync/internal/source"
	"ticketsync/internal/storage"
)

func newDownloader(t *testing.T, srv *httptest.Server) (*source.Downloader, string) {
	t.Helper()
	dir := t.TempDir()
	sink, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	d, err := source.NewDownloader(source.Config{
		APIKey:         "key",
		InitialBackoff: time.Millisecond,
		HTTPClient:     srv.Client(),
	}, sink)
	if err != nil {
		t.Fatalf("NewDownloader: %v", err)
	}
	return d, dir
}

func TestDownloadWritesToSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			t.Errorf("expected basic auth on helpdesk-hosted link")
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	d, dir := newDownloader(t, srv)
	ok, err := d.Download(context.Background(), srv.URL+"/file", storage.Key(3, "notes.txt"))
	if err != nil || !ok {
		t.Fatalf("Download = %v, %v", ok, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "3", "notes.txt"))
	if err != nil || string(data) != "payload" {
		t.Fatalf("file = %q, %v", data, err)
	}
}

func TestDownloadClassifiesFailures(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, services.ErrExpiredLink},
		{http.StatusGone, services.ErrExpiredLink},
		{http.StatusNotFound, services.ErrNotFound},
		{http.StatusTeapot, services.ErrTransient},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		d, dir := newDownloader(t, srv)
		ok, err := d.Download(context.Background(), srv.URL+"/f?sig=x", storage.Key(1, "f"))
		srv.Close()
		if ok || !errors.Is(err, tc.want) {
			t.Fatalf("status %d: Download = %v, %v; want %v", tc.status, ok, err, tc.want)
		}
		if _, statErr := os.Stat(filepath.Join(dir, "1", "f")); !os.IsNotExist(statErr) {
			t.Fatalf("status %d left a file behind", tc.status)
		}
	}
}

func TestDownloadValidatesArguments(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	d, _ := newDownloader(t, srv)
	if _, err := d.Download(context.Background(), "", "k"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v", err)
	}
}
