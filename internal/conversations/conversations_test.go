package conversations

import (
	"context"
	"os"
	"testing"
	"time"

	"ticketsync/internal/artifact"
	"ticketsync/internal/ledger"
)

func newProcessor(t *testing.T) *Processor {
	t.Helper()
	store := artifact.NewStore(t.TempDir()).WithPollInterval(time.Millisecond)
	p := New(store, 5*time.Millisecond, nil)
	p.now = func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) }
	return p
}

func TestProcessMapsConversationIDs(t *testing.T) {
	p := newProcessor(t)
	ticket := &artifact.Ticket{ID: 3, Conversations: []artifact.Conversation{{ID: 100}, {ID: 0}, {ID: 101}}}
	if err := p.artifacts.Write(ticket); err != nil {
		t.Fatalf("Write: %v", err)
	}
	status, err := p.Process(context.Background(), 3)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := ledger.Done(map[string]string{"100": "2024-03-04T05:06:07Z", "101": "2024-03-04T05:06:07Z"})
	if !status.Equal(want) {
		t.Fatalf("status = %v, want %v", status.Items(), want.Items())
	}
}

func TestProcessOutcomes(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, p *Processor)
		empty bool
		err   bool
	}{
		{name: "missing artifact", setup: func(*testing.T, *Processor) {}, empty: true},
		{name: "no conversations", setup: func(t *testing.T, p *Processor) {
			if err := p.artifacts.Write(&artifact.Ticket{ID: 5}); err != nil {
				t.Fatalf("Write: %v", err)
			}
		}, empty: true},
		{name: "malformed artifact", setup: func(t *testing.T, p *Processor) {
			if err := os.WriteFile(p.artifacts.Path(5), []byte("{"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		}, empty: true, err: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := newProcessor(t)
			tc.setup(t, p)
			status, err := p.Process(context.Background(), 5)
			if (err != nil) != tc.err {
				t.Fatalf("err = %v, want error %v", err, tc.err)
			}
			if status.IsEmpty() != tc.empty {
				t.Fatalf("status = %s", status)
			}
		})
	}
}

func TestEvaluate(t *testing.T) {
	p := newProcessor(t)
	if !p.Evaluate(context.Background(), 1).IsEmpty() {
		t.Fatal("missing artifact must evaluate to Empty")
	}
	if err := p.artifacts.Write(&artifact.Ticket{ID: 1, Conversations: []artifact.Conversation{{ID: 7}}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if status := p.Evaluate(context.Background(), 1); !status.IsDone() || status.Len() != 1 {
		t.Fatalf("Evaluate = %s", status)
	}
	if !p.HealthCheck(context.Background()).Ready {
		t.Fatal("expected healthy stage")
	}
}
