package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewTeeHandlerNilHandlers(t *testing.T) {
	h := newTeeHandler(nil, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Fatalf("expected NoopHandler for all nil handlers, got %T", h)
	}
}

func TestNewTeeHandlerSingleHandlerUnwrapped(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := newTeeHandler(nil, inner); h != inner {
		t.Fatal("expected single non-nil handler to be returned unwrapped")
	}
}

func TestTeeHandlerRespectsPerHandlerLevel(t *testing.T) {
	var infoBuf, debugBuf bytes.Buffer
	infoHandler := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	debugHandler := slog.NewJSONHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug})

	h := newTeeHandler(infoHandler, debugHandler)
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected tee to be enabled for debug")
	}
	logger := slog.New(h)
	logger.Debug("debug only")

	if infoBuf.Len() != 0 {
		t.Fatal("info handler should not receive debug messages")
	}
	if debugBuf.Len() == 0 {
		t.Fatal("debug handler should receive debug messages")
	}
}

func TestTeeHandlerWithAttrsReachesAllHandlers(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newTeeHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))
	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("stage", "attachments")}))
	logger.Info("claimed")

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"stage":"attachments"`)) {
			t.Fatalf("expected stage attribute in handler %d output, got %q", i, buf.String())
		}
	}
}

func TestComposeSubject(t *testing.T) {
	cases := []struct {
		worker, item, stage, want string
	}{
		{"", "", "", ""},
		{"2", "42", "attachments", "Worker 2 · Ticket #42 (attachments)"},
		{"", "42", "", "Ticket #42"},
		{"1", "", "conversations", "Worker 1 · conversations"},
	}
	for _, tc := range cases {
		if got := composeSubject(tc.worker, tc.item, tc.stage); got != tc.want {
			t.Fatalf("composeSubject(%q,%q,%q) = %q, want %q", tc.worker, tc.item, tc.stage, got, tc.want)
		}
	}
}
