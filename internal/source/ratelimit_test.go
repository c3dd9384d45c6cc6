package source

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		header string
		want   time.Duration
	}{
		{"", DefaultRetryAfter},
		{"5", 5 * time.Second},
		{"-3", 0},
		{"soon", DefaultRetryAfter},
		{now.Add(7 * time.Second).Format(http.TimeFormat), 7 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tc := range cases {
		if got := retryAfter(tc.header, now); got != tc.want {
			t.Fatalf("retryAfter(%q) = %s, want %s", tc.header, got, tc.want)
		}
	}
}

func TestBackoffIsCapped(t *testing.T) {
	if got := backoff(time.Second, 0); got != time.Second {
		t.Fatalf("backoff(0) = %s", got)
	}
	if got := backoff(time.Second, 3); got != 8*time.Second {
		t.Fatalf("backoff(3) = %s", got)
	}
	if got := backoff(time.Second, 40); got != MaxBackoff {
		t.Fatalf("backoff(40) = %s, want cap", got)
	}
}

func TestIsRetriable(t *testing.T) {
	if IsRetriable(nil) || IsRetriable(context.Canceled) || IsRetriable(errors.New("bad request")) {
		t.Fatal("unexpected retriable classification")
	}
	if !IsRetriable(context.DeadlineExceeded) || !IsRetriable(errors.New("read: connection reset by peer")) {
		t.Fatal("expected retriable classification")
	}
}

func TestNeedsAuth(t *testing.T) {
	cases := map[string]bool{
		"https://acme.freshdesk.com/api/v2/attachments/1":   true,
		"https://s3.amazonaws.com/bucket/file?X-Amz=1":      false,
		"https://attachments.s3.amazonaws.com/f":            false,
		"https://cdn.freshdesk.com/data/helpdesk/file.png":  false,
		"https://evil-s3.amazonaws.com.example.org/payload": true,
	}
	for link, want := range cases {
		if got := needsAuth(link); got != want {
			t.Fatalf("needsAuth(%q) = %v, want %v", link, got, want)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := redact("https://x/y?sig=secret"); got != "https://x/y" {
		t.Fatalf("redact = %q", got)
	}
}
