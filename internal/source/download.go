package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ticketsync/internal/logging"
	"ticketsync/internal/services"
	"ticketsync/internal/storage"
)

// unauthenticatedHosts serve presigned links that reject extra credentials.
var unauthenticatedHosts = []string{"s3.amazonaws.com", "cdn.freshdesk.com"}

// Downloader fetches attachment files and streams them into a storage.Sink.
type Downloader struct {
	apiKey string
	sink   storage.Sink
	req    *requester
	logger *slog.Logger
}

// NewDownloader builds a Downloader that writes into sink. cfg supplies the
// API key and retry settings; BaseURL is ignored.
func NewDownloader(cfg Config, sink storage.Sink) (*Downloader, error) {
	if sink == nil {
		return nil, services.Wrap(services.ErrConfiguration, "source", "init", "storage sink is required", nil)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		// Attachments can be large; the timeout covers headers, not the body.
		client = &http.Client{Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			ResponseHeaderTimeout: timeout,
		}}
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = InitialBackoff
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := logging.NewComponentLogger(cfg.Logger, "download")
	return &Downloader{
		apiKey: strings.TrimSpace(cfg.APIKey),
		sink:   sink,
		logger: logger,
		req: &requester{
			http:           client,
			maxRetries:     max(cfg.MaxRetries, 0),
			initialBackoff: initial,
			userAgent:      userAgent,
			logger:         logger,
		},
	}, nil
}

// Sink returns the destination sink.
func (d *Downloader) Sink() storage.Sink {
	return d.sink
}

func needsAuth(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return true
	}
	host := strings.ToLower(parsed.Hostname())
	for _, suffix := range unauthenticatedHosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return false
		}
	}
	return true
}

// Download fetches link and writes it to key. It reports true when the sink
// holds the file afterwards. Rejected or expired presigned links surface as
// ErrExpiredLink so the caller can refresh the listing once.
func (d *Downloader) Download(ctx context.Context, link, key string) (bool, error) {
	if strings.TrimSpace(link) == "" || strings.TrimSpace(key) == "" {
		return false, services.Wrap(services.ErrValidation, "source", "download", "url and key are required", nil)
	}
	decorate := func(req *http.Request) {
		if d.apiKey != "" && needsAuth(link) {
			req.SetBasicAuth(d.apiKey, "X")
		}
	}
	start := time.Now()
	resp, err := d.req.get(ctx, link, decorate)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusGone, http.StatusBadRequest:
		return false, services.Wrap(services.ErrExpiredLink, "source", "download",
			fmt.Sprintf("%s rejected (%s)", redact(link), resp.Status), nil)
	case http.StatusNotFound:
		return false, services.Wrap(services.ErrNotFound, "source", "download", redact(link), nil)
	default:
		return false, services.Wrap(services.ErrTransient, "source", "download",
			fmt.Sprintf("%s: %s", redact(link), resp.Status), nil)
	}

	n, err := d.sink.Put(ctx, key, resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return false, err
	}
	d.logger.Debug("attachment downloaded",
		logging.String("key", key),
		logging.Int64("bytes", n),
		logging.Duration("elapsed", time.Since(start)),
	)
	return true, nil
}
