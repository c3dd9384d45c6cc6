package ledger

import (
	"fmt"
	"strings"
)

// Stage names one enrichment pipeline applied to every ticket.
type Stage string

const (
	StageAttachments             Stage = "attachments"
	StageConversations           Stage = "conversations"
	StageConversationAttachments Stage = "conversation_attachments"
)

var stageFields = map[Stage]string{
	StageAttachments:             "Ticket Attachments",
	StageConversations:           "Conversations",
	StageConversationAttachments: "Conversation Attachments",
}

// Stages returns every stage in document field order.
func Stages() []Stage {
	return []Stage{StageAttachments, StageConversations, StageConversationAttachments}
}

// Field returns the ledger document key that stores this stage's status.
func (s Stage) Field() string {
	return stageFields[s]
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageFields[s]
	return ok
}

// Prerequisite returns the stage whose committed status gates s, if any.
func (s Stage) Prerequisite() (Stage, bool) {
	if s == StageConversationAttachments {
		return StageConversations, true
	}
	return "", false
}

// ParseStage accepts a stage name or its document field name.
func ParseStage(value string) (Stage, error) {
	trimmed := strings.TrimSpace(value)
	normalized := strings.ToLower(strings.ReplaceAll(trimmed, "-", "_"))
	for stage, field := range stageFields {
		if normalized == string(stage) || strings.EqualFold(trimmed, field) {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", value)
}
