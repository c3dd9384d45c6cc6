package statusapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ticketsync/internal/ledger"
	"ticketsync/internal/statusapi"
	"ticketsync/internal/testsupport"
	"ticketsync/internal/tracker"
)

type attachmentStub []tracker.Record

func (s attachmentStub) List(context.Context) ([]tracker.Record, error) {
	return s, nil
}

func seededStore(t *testing.T) ledger.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedRecords(t, store, 1, 2)
	if err := store.SetStatus(context.Background(), 1, ledger.StageAttachments, ledger.Done(map[string]string{"9": "2024-01-01T00:00:00Z"})); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	return store
}

func TestSummaryEndpoint(t *testing.T) {
	store := seededStore(t)
	attachments := attachmentStub{{TicketID: 1, AttachmentID: "9", AttachmentType: "ticket_attachment"}}
	srv := statusapi.NewServer(store, attachments, "", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", w.Code)
	}
	var resp statusapi.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Ledger.Records != 2 || resp.Complete {
		t.Fatalf("unexpected summary %+v", resp)
	}
	if resp.Ledger.Stages[0].Done != 1 || resp.Ledger.Stages[0].SubItems != 1 {
		t.Fatalf("unexpected attachment stage summary %+v", resp.Ledger.Stages[0])
	}
	if resp.Attachments == nil || resp.Attachments.Total != 1 {
		t.Fatalf("expected attachment summary, got %+v", resp.Attachments)
	}
}

func TestRecordEndpoint(t *testing.T) {
	srv := statusapi.NewServer(seededStore(t), nil, "", nil)

	cases := []struct {
		path string
		want int
	}{
		{"/api/records/1", http.StatusOK},
		{"/api/records/99", http.StatusNotFound},
		{"/api/records/abc", http.StatusBadRequest},
		{"/api/nowhere", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.want, w.Code)
		}
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records/1", nil))
	var resp statusapi.RecordResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Record.TicketID != 1 || !resp.Record.Status(ledger.StageAttachments).IsDone() {
		t.Fatalf("unexpected record %+v", resp.Record)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := statusapi.NewServer(seededStore(t), nil, "", nil)
	for _, path := range []string{"/health", "/api/summary", "/api/records", "/api/records/1"} {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("POST %s: expected 405, got %d", path, w.Code)
		}
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown api path, got %d", w.Code)
	}
}

func TestTokenRequiredForAPI(t *testing.T) {
	srv := statusapi.NewServer(seededStore(t), nil, "secret", nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health should not require a token, got %d", w.Code)
	}
}

func TestClientAgainstRunningServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := statusapi.NewServer(seededStore(t), nil, "secret", nil)
	addr, err := srv.Start(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Stop()

	client, err := statusapi.Dial(ctx, addr.String(), "secret")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	summary, err := client.Summary(ctx)
	if err != nil || summary.Ledger.Records != 2 {
		t.Fatalf("Summary = %+v, %v", summary, err)
	}
	rec, err := client.Describe(ctx, 2)
	if err != nil || rec == nil || rec.TicketID != 2 {
		t.Fatalf("Describe = %+v, %v", rec, err)
	}
	missing, err := client.Describe(ctx, 404)
	if err != nil || missing != nil {
		t.Fatalf("Describe(missing) = %+v, %v", missing, err)
	}
	records, err := client.List(ctx)
	if err != nil || len(records) != 2 {
		t.Fatalf("List = %d, %v", len(records), err)
	}

	bad, err := statusapi.Dial(ctx, addr.String(), "wrong")
	if err != nil {
		t.Fatalf("Dial with wrong token should reach /health: %v", err)
	}
	if _, err := bad.Summary(ctx); err == nil {
		t.Fatal("expected unauthorized error")
	}
}
