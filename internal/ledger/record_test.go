package ledger

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRecordMarshalKeyOrder(t *testing.T) {
	rec := NewRecord(42, "2024-01-01T00:00:00Z", "7")
	rec.SetStatus(StageConversations, Empty())
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"Ticket_ID":42,"Created_when":"2024-01-01T00:00:00Z","Created_by":"7",` +
		`"Ticket Attachments":null,"Conversations":"NA","Conversation Attachments":null}`
	if string(data) != want {
		t.Fatalf("Marshal =\n%s\nwant\n%s", data, want)
	}
}

func TestRecordUnmarshalAcceptsStringID(t *testing.T) {
	var rec Record
	input := `{"Ticket_ID":" 815 ","Created_when":"w","Created_by":12,"Conversations":"I"}`
	if err := json.Unmarshal([]byte(input), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if rec.TicketID != 815 || rec.CreatedWhen != "w" || rec.CreatedBy != "12" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Status(StageConversations).IsInProgress() || !rec.Status(StageAttachments).IsUnset() {
		t.Fatal("statuses not decoded")
	}
}

func TestRecordUnmarshalRejectsBadID(t *testing.T) {
	for _, input := range []string{`{}`, `{"Ticket_ID":"abc"}`, `{"Ticket_ID":1.5}`, `{"Ticket_ID":null}`} {
		var rec Record
		if err := json.Unmarshal([]byte(input), &rec); err == nil {
			t.Fatalf("Unmarshal(%s) succeeded, want error", input)
		}
	}
}

func TestRecordPreservesUnknownKeys(t *testing.T) {
	input := `{"Ticket_ID":1,"zeta":true,"Notes":{"a":1},"Ticket Attachments":{"5":"t"}}`
	var rec Record
	if err := json.Unmarshal([]byte(input), &rec); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	out := string(data)
	if !strings.HasSuffix(out, `"Notes":{"a":1},"zeta":true}`) {
		t.Fatalf("unknown keys not preserved in sorted order: %s", out)
	}
	if !strings.Contains(out, `"Ticket Attachments":{"5":"t"}`) {
		t.Fatalf("status lost: %s", out)
	}
}

func TestRecordCloneIsIndependent(t *testing.T) {
	rec := NewRecord(1, "", "")
	rec.SetStatus(StageAttachments, InProgress())
	clone := rec.Clone()
	clone.SetStatus(StageAttachments, Empty())
	if !rec.Status(StageAttachments).IsInProgress() {
		t.Fatal("mutating clone changed original")
	}
}
