package ledger

import "testing"

func TestSummarizeCountsPerStage(t *testing.T) {
	a := NewRecord(1, "", "")
	a.SetStatus(StageAttachments, Done(map[string]string{"1": "t", "2": "t"}))
	a.SetStatus(StageConversations, Empty())
	b := NewRecord(2, "", "")
	b.SetStatus(StageAttachments, InProgress())

	summary := Summarize([]Record{a, b})
	if summary.Records != 2 || len(summary.Stages) != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	att := summary.Stages[0]
	if att.Stage != StageAttachments || att.Done != 1 || att.InProgress != 1 || att.SubItems != 2 {
		t.Fatalf("attachments summary = %+v", att)
	}
	conv := summary.Stages[1]
	if conv.Empty != 1 || conv.Unset != 1 || conv.Complete() {
		t.Fatalf("conversations summary = %+v", conv)
	}
	if summary.Complete() {
		t.Fatal("summary with unset work must not be complete")
	}
}

func TestSummarizeEmptyLedgerIsComplete(t *testing.T) {
	if !Summarize(nil).Complete() {
		t.Fatal("empty ledger should be complete")
	}
}
