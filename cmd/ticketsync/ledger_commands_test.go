package main

import (
	"context"
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"ticketsync/internal/artifact"
	"ticketsync/internal/ledger"
	"ticketsync/internal/statusapi"
	"ticketsync/internal/testsupport"
)

func TestStatusOutputs(t *testing.T) {
	env := setupCLITestEnv(t)
	withStore(t, env.cfg, func(store ledger.Store) {
		testsupport.SeedRecords(t, store, 1, 2)
	})

	out, _, err := runCLI(t, []string{"status", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var summary statusapi.Summary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if summary.Ledger.Records != 2 || summary.Complete {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, s := range summary.Ledger.Stages {
		if s.Unset != 2 {
			t.Fatalf("stage %s unset = %d, want 2", s.Stage, s.Unset)
		}
	}

	out, _, err = runCLI(t, []string{"status", "--yaml"}, env.configPath)
	if err != nil {
		t.Fatalf("status --yaml: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("decode status yaml: %v\n%s", err, out)
	}
	if _, ok := decoded["ledger"]; !ok {
		t.Fatalf("yaml output missing ledger section: %s", out)
	}

	out, _, err = runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "ledger file")
	requireContains(t, out, "Conversation Attachments")
	requireContains(t, out, "work remaining")

	if _, _, err := runCLI(t, []string{"status", "--json", "--yaml"}, env.configPath); err == nil {
		t.Fatal("expected conflicting format flags to fail")
	}
}

func TestShowTicket(t *testing.T) {
	env := setupCLITestEnv(t)
	withStore(t, env.cfg, func(store ledger.Store) {
		testsupport.SeedRecords(t, store, 7)
		if err := store.SetStatus(context.Background(), 7, ledger.StageAttachments, ledger.Done(map[string]string{"70": "2024-01-01T00:00:00Z"})); err != nil {
			t.Fatalf("SetStatus: %v", err)
		}
	})

	out, _, err := runCLI(t, []string{"show", "7"}, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Ticket Attachments")
	requireContains(t, out, "done")
	requireContains(t, out, "70")

	out, _, err = runCLI(t, []string{"show", "7", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var view recordView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode show json: %v\n%s", err, out)
	}
	if view.TicketID != 7 || len(view.Stages) != 3 || view.Stages[0].Status != "done" || view.Stages[0].Field != "Ticket Attachments" {
		t.Fatalf("unexpected view: %+v", view)
	}

	if _, _, err := runCLI(t, []string{"show", "99"}, env.configPath); err == nil {
		t.Fatal("expected missing ticket to fail")
	}
	if _, _, err := runCLI(t, []string{"show", "abc"}, env.configPath); err == nil {
		t.Fatal("expected invalid id to fail")
	}
}

func TestConsumeConversations(t *testing.T) {
	env := setupCLITestEnv(t)
	withStore(t, env.cfg, func(store ledger.Store) {
		testsupport.SeedRecords(t, store, 1, 2)
	})
	testsupport.WriteTicket(t, env.cfg, &artifact.Ticket{ID: 1, Conversations: []artifact.Conversation{{ID: 100}, {ID: 101}}})
	testsupport.WriteTicket(t, env.cfg, &artifact.Ticket{ID: 2})

	out, _, err := runCLI(t, []string{"consume", "conversations"}, env.configPath)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	requireContains(t, out, "Conversations: 2 claimed, 1 done, 1 empty")

	if status := statusOf(t, env.cfg, 1, ledger.StageConversations); !status.IsDone() || status.Len() != 2 {
		t.Fatalf("ticket 1 status = %s, want done(2)", status)
	}
	if status := statusOf(t, env.cfg, 2, ledger.StageConversations); !status.IsEmpty() {
		t.Fatalf("ticket 2 status = %s, want empty", status)
	}

	if _, _, err := runCLI(t, []string{"consume", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown stage to fail")
	}
}

func TestFinalizeResolvesAbandonedClaims(t *testing.T) {
	env := setupCLITestEnv(t)
	withStore(t, env.cfg, func(store ledger.Store) {
		testsupport.SeedRecords(t, store, 4)
		if _, ok, err := store.ClaimNext(context.Background(), ledger.StageConversations); err != nil || !ok {
			t.Fatalf("ClaimNext: ok=%v err=%v", ok, err)
		}
	})
	testsupport.WriteTicket(t, env.cfg, &artifact.Ticket{ID: 4, Conversations: []artifact.Conversation{{ID: 40}}})

	out, _, err := runCLI(t, []string{"finalize", "conversations"}, env.configPath)
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	requireContains(t, out, "resolved 1 claim")
	if status := statusOf(t, env.cfg, 4, ledger.StageConversations); !status.IsDone() {
		t.Fatalf("ticket 4 status = %s, want done", status)
	}

	out, _, err = runCLI(t, []string{"finalize", "conversations"}, env.configPath)
	if err != nil {
		t.Fatalf("second finalize: %v", err)
	}
	requireContains(t, out, "resolved 0 claims")
}
