package artifact

import (
	"strconv"
)

// Attachment kinds recorded in the artifact and the tracker.
const (
	TypeTicketAttachment       = "ticket_attachment"
	TypeConversationAttachment = "conversation_attachment"
)

// Attachment is one downloadable file referenced by a ticket or conversation.
type Attachment struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url,omitempty"`
	AttachmentURL  string `json:"attachment_url,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	Size           int64  `json:"size,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	Type           string `json:"type,omitempty"`
	TicketID       int64  `json:"ticket_id,omitempty"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	UserID         int64  `json:"user_id,omitempty"`
}

// Key returns the sub-item id used in Done mappings.
func (a Attachment) Key() string {
	if a.ID == 0 {
		return ""
	}
	return strconv.FormatInt(a.ID, 10)
}

// SourceURL prefers url and falls back to attachment_url.
func (a Attachment) SourceURL() string {
	if a.URL != "" {
		return a.URL
	}
	return a.AttachmentURL
}

// Downloadable reports whether the attachment carries an id, a name and a url.
func (a Attachment) Downloadable() bool {
	return a.ID != 0 && a.Name != "" && a.SourceURL() != ""
}

// Conversation is one reply or note on a ticket.
type Conversation struct {
	ID           int64        `json:"id"`
	BodyText     string       `json:"body_text,omitempty"`
	Body         string       `json:"body,omitempty"`
	Private      bool         `json:"private"`
	Incoming     bool         `json:"incoming"`
	Source       int          `json:"source,omitempty"`
	CreatedAt    string       `json:"created_at,omitempty"`
	UpdatedAt    string       `json:"updated_at,omitempty"`
	UserID       int64        `json:"user_id,omitempty"`
	SupportEmail string       `json:"support_email,omitempty"`
	FromEmail    string       `json:"from_email,omitempty"`
	ToEmails     []string     `json:"to_emails,omitempty"`
	CCEmails     []string     `json:"cc_emails,omitempty"`
	BCCEmails    []string     `json:"bcc_emails,omitempty"`
	TicketID     int64        `json:"ticket_id,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Ticket is the complete upstream artifact for one work item.
type Ticket struct {
	ID              int64          `json:"id"`
	Subject         string         `json:"subject,omitempty"`
	Description     string         `json:"description,omitempty"`
	DescriptionText string         `json:"description_text,omitempty"`
	Status          int            `json:"status,omitempty"`
	Priority        int            `json:"priority,omitempty"`
	Source          int            `json:"source,omitempty"`
	Type            string         `json:"type,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	RequesterID     *int64         `json:"requester_id,omitempty"`
	ResponderID     *int64         `json:"responder_id,omitempty"`
	GroupID         *int64         `json:"group_id,omitempty"`
	CreatedAt       string         `json:"created_at,omitempty"`
	UpdatedAt       string         `json:"updated_at,omitempty"`
	Attachments     []Attachment   `json:"attachments"`
	Conversations   []Conversation `json:"conversations"`
}

// CreatedBy renders the requester id the way skeleton records store it.
func (t *Ticket) CreatedBy() string {
	if t == nil || t.RequesterID == nil {
		return ""
	}
	return strconv.FormatInt(*t.RequesterID, 10)
}

// TicketAttachments returns the ticket-level attachments only.
func (t *Ticket) TicketAttachments() []Attachment {
	if t == nil {
		return nil
	}
	var out []Attachment
	for _, att := range t.Attachments {
		if att.Type == TypeTicketAttachment {
			out = append(out, att)
		}
	}
	return out
}

// ConversationAttachments flattens every conversation's attachments,
// annotating each with its conversation, ticket, and author.
func (t *Ticket) ConversationAttachments() []Attachment {
	if t == nil {
		return nil
	}
	var out []Attachment
	for _, conv := range t.Conversations {
		for _, att := range conv.Attachments {
			att.ConversationID = conv.ID
			att.TicketID = t.ID
			att.UserID = conv.UserID
			if att.Type == "" {
				att.Type = TypeConversationAttachment
			}
			out = append(out, att)
		}
	}
	return out
}

// ConversationIDs returns the non-zero conversation ids in artifact order.
func (t *Ticket) ConversationIDs() []string {
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.Conversations))
	for _, conv := range t.Conversations {
		if conv.ID != 0 {
			ids = append(ids, strconv.FormatInt(conv.ID, 10))
		}
	}
	return ids
}
