package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"ticketsync/internal/config"
	"ticketsync/internal/ledger"
	"ticketsync/internal/logging"
	"ticketsync/internal/pipeline"
	"ticketsync/internal/services"
	"ticketsync/internal/testsupport"
)

// fakeFreshdesk serves three tickets: one with a ticket attachment and a
// conversation attachment, one with a bare conversation, and one with
// nothing to enrich.
type fakeFreshdesk struct {
	srv       *httptest.Server
	downloads atomic.Int32
}

func newFakeFreshdesk(t *testing.T) *fakeFreshdesk {
	t.Helper()
	f := &fakeFreshdesk{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeFreshdesk) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, "/files/"):
		f.downloads.Add(1)
		_, _ = w.Write([]byte("file:" + strings.TrimPrefix(r.URL.Path, "/files/")))
	case r.URL.Path == "/api/v2/tickets/1":
		fmt.Fprintf(w, `{"id":1,"requester_id":10,"created_at":"2024-05-01T08:00:00Z",
			"attachments":[{"id":11,"name":"report.pdf","attachment_url":"%[1]s/files/report.pdf"}],
			"conversations":[{"id":100,"attachments":[{"id":12,"name":"screenshot.png","attachment_url":"%[1]s/files/shot.png"}]}]}`, f.srv.URL)
	case r.URL.Path == "/api/v2/tickets/2":
		_, _ = w.Write([]byte(`{"id":2,"requester_id":20,"attachments":[],"conversations":[{"id":200,"body_text":"thanks"}]}`))
	case r.URL.Path == "/api/v2/tickets/3":
		_, _ = w.Write([]byte(`{"id":3,"requester_id":30,"attachments":[],"conversations":[]}`))
	default:
		http.NotFound(w, r)
	}
}

func newComponents(t *testing.T, cfg *config.Config) *pipeline.Components {
	t.Helper()
	c, err := pipeline.Build(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testConfig(t *testing.T, backend, sourceURL string) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithBackend(backend), testsupport.WithSourceURL(sourceURL), testsupport.WithCompletionFlag(true))
	// Pools outlive the producer; the completion flag ends them.
	cfg.Workflow.MaxEmptyChecks = 1000
	return cfg
}

func TestRunEndToEnd(t *testing.T) {
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			fd := newFakeFreshdesk(t)
			cfg := testConfig(t, backend, fd.srv.URL)
			c := newComponents(t, cfg)

			report, err := pipeline.Run(context.Background(), c, pipeline.Options{TicketIDs: []int64{1, 2, 3}})
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if report.Producer == nil || report.Producer.Added != 3 {
				t.Fatalf("unexpected producer result: %+v", report.Producer)
			}
			if !report.Summary.Complete() || report.Summary.Records != 3 {
				t.Fatalf("ledger not complete: %+v", report.Summary)
			}

			want := []struct {
				id    int64
				stage ledger.Stage
				done  []string
			}{
				{1, ledger.StageAttachments, []string{"11"}},
				{1, ledger.StageConversations, []string{"100"}},
				{1, ledger.StageConversationAttachments, []string{"12"}},
				{2, ledger.StageAttachments, nil},
				{2, ledger.StageConversations, []string{"200"}},
				{2, ledger.StageConversationAttachments, nil},
				{3, ledger.StageAttachments, nil},
				{3, ledger.StageConversations, nil},
				{3, ledger.StageConversationAttachments, nil},
			}
			for _, tc := range want {
				status := testsupport.MustStatus(t, c.Store, tc.id, tc.stage)
				if tc.done == nil {
					if !status.IsEmpty() {
						t.Errorf("ticket %d %s = %s, want empty", tc.id, tc.stage, status)
					}
					continue
				}
				items := status.Items()
				if len(items) != len(tc.done) {
					t.Errorf("ticket %d %s = %s, want %v", tc.id, tc.stage, status, tc.done)
					continue
				}
				for _, key := range tc.done {
					if _, ok := items[key]; !ok {
						t.Errorf("ticket %d %s missing %s", tc.id, tc.stage, key)
					}
				}
			}

			for _, name := range []string{"report.pdf", "conv_screenshot.png"} {
				if _, err := os.Stat(filepath.Join(cfg.Paths.AttachmentDir, "1", name)); err != nil {
					t.Errorf("expected attachment %s: %v", name, err)
				}
			}
			if got := fd.downloads.Load(); got != 2 {
				t.Errorf("expected 2 downloads, got %d", got)
			}
			tracked, err := c.Tracker.List(context.Background())
			if err != nil || len(tracked) != 2 {
				t.Fatalf("tracker = %d records, %v", len(tracked), err)
			}
			if !c.Flags.IsComplete(context.Background(), ledger.StageAttachments) {
				t.Error("producer completion flag not set")
			}
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	fd := newFakeFreshdesk(t)
	cfg := testConfig(t, config.BackendJSON, fd.srv.URL)
	c := newComponents(t, cfg)

	if _, err := pipeline.Run(context.Background(), c, pipeline.Options{TicketIDs: []int64{1, 2, 3}}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	before := fd.downloads.Load()
	report, err := pipeline.Run(context.Background(), c, pipeline.Options{TicketIDs: []int64{1, 2, 3}})
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if report.Producer.Added != 0 || report.Producer.Skipped != 3 {
		t.Fatalf("expected every ticket skipped: %+v", report.Producer)
	}
	for _, stage := range report.Stages {
		if stage.Counts.Claimed != 0 {
			t.Fatalf("%s claimed %d tickets on a finished ledger", stage.Stage, stage.Counts.Claimed)
		}
	}
	if fd.downloads.Load() != before {
		t.Fatal("second run must not download again")
	}
}

func TestRunDrainOnlyConversations(t *testing.T) {
	fd := newFakeFreshdesk(t)
	cfg := testConfig(t, config.BackendJSON, fd.srv.URL)
	c := newComponents(t, cfg)

	if _, err := pipeline.Run(context.Background(), c, pipeline.Options{
		TicketIDs: []int64{2, 3},
		Stages:    []ledger.Stage{ledger.StageConversations},
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	report, err := pipeline.Run(context.Background(), c, pipeline.Options{
		SkipProducer: true,
		Stages:       []ledger.Stage{ledger.StageConversationAttachments},
	})
	if err != nil {
		t.Fatalf("drain Run: %v", err)
	}
	if report.Producer != nil {
		t.Fatal("producer must not run when skipped")
	}
	if status := testsupport.MustStatus(t, c.Store, 3, ledger.StageConversationAttachments); !status.IsEmpty() {
		t.Fatalf("short-circuit expected empty, got %s", status)
	}
	if status := testsupport.MustStatus(t, c.Store, 2, ledger.StageAttachments); !status.IsUnset() {
		t.Fatalf("unrequested stage must stay unset, got %s", status)
	}
	if fd.downloads.Load() != 0 {
		t.Fatal("no attachments should be downloaded")
	}
}

func TestProcessorRejectsUnknownStage(t *testing.T) {
	c := newComponents(t, testConfig(t, config.BackendJSON, "http://127.0.0.1:1"))
	if _, err := c.Processor(ledger.Stage("summaries")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAttachmentStagesRequireSource(t *testing.T) {
	cfg := testConfig(t, config.BackendJSON, "")
	cfg.Source.Domain = ""
	cfg.Source.BaseURL = ""
	c := newComponents(t, cfg)

	if _, err := c.Processor(ledger.StageAttachments); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := c.Processor(ledger.StageConversations); err != nil {
		t.Fatalf("conversations stage needs no source: %v", err)
	}
}

func TestProduceThenConsumeSeparately(t *testing.T) {
	fd := newFakeFreshdesk(t)
	cfg := testConfig(t, config.BackendSQLite, fd.srv.URL)
	c := newComponents(t, cfg)

	result, err := pipeline.Produce(context.Background(), c, pipeline.Options{TicketIDs: []int64{1, 2, 3, 404}})
	if err != nil {
		t.Fatalf("Produce: %v", err)
	}
	if result.Added != 3 || result.Failed != 1 {
		t.Fatalf("unexpected producer result: %+v", result)
	}
	if rec, err := c.Store.Get(context.Background(), 404); err != nil || rec != nil {
		t.Fatalf("failed fetch must not add a record: %v %v", rec, err)
	}

	counts, err := pipeline.Consume(context.Background(), c, ledger.StageConversations)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if counts.Done != 2 || counts.Empty != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestFinalizeResolvesAbandonedClaims(t *testing.T) {
	fd := newFakeFreshdesk(t)
	cfg := testConfig(t, config.BackendJSON, fd.srv.URL)
	c := newComponents(t, cfg)

	if _, err := pipeline.Produce(context.Background(), c, pipeline.Options{TicketIDs: []int64{1, 3}}); err != nil {
		t.Fatalf("Produce: %v", err)
	}
	// Simulate a crashed consumer holding both claims.
	for range 2 {
		if _, _, err := c.Store.ClaimNext(context.Background(), ledger.StageConversations); err != nil {
			t.Fatalf("ClaimNext: %v", err)
		}
	}

	updated, err := pipeline.Finalize(context.Background(), c, ledger.StageConversations)
	if err != nil || updated != 2 {
		t.Fatalf("Finalize = %d, %v", updated, err)
	}
	if status := testsupport.MustStatus(t, c.Store, 1, ledger.StageConversations); !status.IsDone() {
		t.Fatalf("ticket 1 = %s, want done from the artifact", status)
	}
	if status := testsupport.MustStatus(t, c.Store, 3, ledger.StageConversations); !status.IsEmpty() {
		t.Fatalf("ticket 3 = %s, want empty", status)
	}
}
