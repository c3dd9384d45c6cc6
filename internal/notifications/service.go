package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ticketsync/internal/config"
)

const userAgent = "ticketsync/0.1.0"

// Service defines the notification surface used by the pipeline and CLI.
type Service interface {
	NotifyRunStarted(ctx context.Context, tickets int) error
	NotifyProducerCompleted(ctx context.Context, added, failed int) error
	NotifyStageCompleted(ctx context.Context, stage string, done, empty, failed int, duration time.Duration) error
	NotifyRunCompleted(ctx context.Context, records int, complete bool, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc actually delivers messages.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyRunStarted(ctx context.Context, tickets int) error {
	message := "Run started"
	if tickets > 0 {
		message = fmt.Sprintf("Run started with %d tickets in the ledger", tickets)
	}
	return n.send(ctx, payload{
		title:   "ticketsync - Run Started",
		message: message,
		tags:    []string{"ticketsync", "run", "started"},
	})
}

func (n *ntfyService) NotifyProducerCompleted(ctx context.Context, added, failed int) error {
	message := fmt.Sprintf("Producer finished: %d tickets added", added)
	if failed > 0 {
		message = fmt.Sprintf("%s, %d fetches failed", message, failed)
	}
	return n.send(ctx, payload{
		title:   "ticketsync - Producer Complete",
		message: message,
		tags:    []string{"ticketsync", "producer", "completed"},
	})
}

func (n *ntfyService) NotifyStageCompleted(ctx context.Context, stage string, done, empty, failed int, duration time.Duration) error {
	stage = strings.TrimSpace(stage)
	title := "ticketsync - Stage Complete"
	message := fmt.Sprintf("%s finished: %d done, %d empty in %s", stage, done, empty, formatDuration(duration))
	if failed > 0 {
		title = "ticketsync - Stage Complete (with errors)"
		message = fmt.Sprintf("%s finished: %d done, %d empty, %d failed in %s", stage, done, empty, failed, formatDuration(duration))
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"ticketsync", stage, "completed"},
	})
}

func (n *ntfyService) NotifyRunCompleted(ctx context.Context, records int, complete bool, duration time.Duration) error {
	data := payload{
		title:   "ticketsync - Run Complete",
		message: fmt.Sprintf("✅ All %d tickets processed in %s", records, formatDuration(duration)),
		tags:    []string{"ticketsync", "run", "completed"},
	}
	if !complete {
		data.title = "ticketsync - Run Stopped"
		data.message = fmt.Sprintf("Run stopped after %s with unfinished tickets (%d in ledger)", formatDuration(duration), records)
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("❌ Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" in ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	return n.send(ctx, payload{
		title:    "ticketsync - Error",
		message:  builder.String(),
		tags:     []string{"ticketsync", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "ticketsync - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"ticketsync", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	return d.String()
}

type noopService struct{}

func (noopService) NotifyRunStarted(context.Context, int) error {
	return nil
}

func (noopService) NotifyProducerCompleted(context.Context, int, int) error {
	return nil
}

func (noopService) NotifyStageCompleted(context.Context, string, int, int, int, time.Duration) error {
	return nil
}

func (noopService) NotifyRunCompleted(context.Context, int, bool, time.Duration) error {
	return nil
}

func (noopService) NotifyError(context.Context, error, string) error {
	return nil
}

func (noopService) TestNotification(context.Context) error {
	return nil
}

