package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ticketsync/internal/config"
	"ticketsync/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if notifications.Enabled(svc) {
		t.Fatal("expected noop service without a topic")
	}
	if err := svc.NotifyRunStarted(context.Background(), 3); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "run started",
			send: func(s notifications.Service) error {
				return s.NotifyRunStarted(context.Background(), 12)
			},
			expectTitle:   "ticketsync - Run Started",
			expectMessage: "Run started with 12 tickets in the ledger",
			expectTags:    "ticketsync,run,started",
		},
		{
			name: "producer completed with failures",
			send: func(s notifications.Service) error {
				return s.NotifyProducerCompleted(context.Background(), 40, 2)
			},
			expectTitle:   "ticketsync - Producer Complete",
			expectMessage: "Producer finished: 40 tickets added, 2 fetches failed",
			expectTags:    "ticketsync,producer,completed",
		},
		{
			name: "stage completed",
			send: func(s notifications.Service) error {
				return s.NotifyStageCompleted(context.Background(), "attachments", 8, 2, 0, 95*time.Second)
			},
			expectTitle:   "ticketsync - Stage Complete",
			expectMessage: "attachments finished: 8 done, 2 empty in 1m35s",
			expectTags:    "ticketsync,attachments,completed",
		},
		{
			name: "stage completed with errors",
			send: func(s notifications.Service) error {
				return s.NotifyStageCompleted(context.Background(), "conversations", 1, 3, 3, 0)
			},
			expectTitle:   "ticketsync - Stage Complete (with errors)",
			expectMessage: "conversations finished: 1 done, 3 empty, 3 failed in 0s",
			expectTags:    "ticketsync,conversations,completed",
		},
		{
			name: "run stopped",
			send: func(s notifications.Service) error {
				return s.NotifyRunCompleted(context.Background(), 5, false, 2*time.Second)
			},
			expectTitle:    "ticketsync - Run Stopped",
			expectMessage:  "Run stopped after 2s with unfinished tickets (5 in ledger)",
			expectTags:     "ticketsync,run,completed",
			expectPriority: "high",
		},
		{
			name: "error",
			send: func(s notifications.Service) error {
				return s.NotifyError(context.Background(), errors.New("ledger unwritable"), "producer")
			},
			expectTitle:    "ticketsync - Error",
			expectMessage:  "❌ Error in producer: ledger unwritable",
			expectTags:     "ticketsync,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic disabled", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error for rejected notification")
	}
}
