package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ticketsync/internal/artifact"
	"ticketsync/internal/logging"
	"ticketsync/internal/services"
)

const (
	defaultUserAgent   = "ticketsync/dev"
	defaultHTTPTimeout = 30 * time.Second
	listPageSize       = 100
	// Freshdesk refuses page numbers beyond this for list endpoints.
	maxListPages = 300
)

// Config describes the Freshdesk client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	// UpdatedSince bounds ListTicketIDs; Freshdesk defaults to the last 30 days.
	UpdatedSince time.Time
	HTTPClient   *http.Client
	Logger       *slog.Logger
}

// Freshdesk is a Client for the Freshdesk v2 REST API.
type Freshdesk struct {
	baseURL      *url.URL
	apiKey       string
	updatedSince time.Time
	req          *requester
	logger       *slog.Logger
}

// NewFreshdesk creates a Freshdesk client from cfg.
func NewFreshdesk(cfg Config) (*Freshdesk, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "source", "init", "freshdesk api key is required", nil)
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "source", "init", "freshdesk base url is required", nil)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "source", "init", "parse base url", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	initial := cfg.InitialBackoff
	if initial <= 0 {
		initial = InitialBackoff
	}
	logger := logging.NewComponentLogger(cfg.Logger, "source")
	return &Freshdesk{
		baseURL:      baseURL,
		apiKey:       apiKey,
		updatedSince: cfg.UpdatedSince,
		logger:       logger,
		req: &requester{
			http:           client,
			maxRetries:     max(cfg.MaxRetries, 0),
			initialBackoff: initial,
			userAgent:      userAgent,
			logger:         logger,
		},
	}, nil
}

func (f *Freshdesk) authorize(req *http.Request) {
	req.SetBasicAuth(f.apiKey, "X")
	req.Header.Set("Accept", "application/json")
}

func (f *Freshdesk) getJSON(ctx context.Context, endpoint *url.URL, operation string, out any) error {
	resp, err := f.req.get(ctx, endpoint.String(), f.authorize)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "source", operation, endpoint.Path, nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "source", operation,
			fmt.Sprintf("freshdesk rejected credentials (%s)", resp.Status), nil)
	case resp.StatusCode >= 400:
		return services.Wrap(services.ErrTransient, "source", operation,
			fmt.Sprintf("%s: %s", resp.Status, errorBody(resp)), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "source", operation, "decode response", err)
	}
	return nil
}

// FetchTicket retrieves ticket id with conversations included.
func (f *Freshdesk) FetchTicket(ctx context.Context, id int64) (*artifact.Ticket, error) {
	if id <= 0 {
		return nil, services.Wrap(services.ErrValidation, "source", "fetch ticket", "ticket id must be positive", nil)
	}
	endpoint := f.baseURL.JoinPath("api", "v2", "tickets", strconv.FormatInt(id, 10))
	endpoint.RawQuery = url.Values{"include": {"conversations"}}.Encode()

	var raw rawTicket
	if err := f.getJSON(ctx, endpoint, "fetch ticket", &raw); err != nil {
		return nil, err
	}
	ticket := raw.normalize()
	if ticket.ID == 0 {
		ticket.ID = id
	}
	return ticket, nil
}

// ListTicketIDs pages through the ticket list in creation order.
func (f *Freshdesk) ListTicketIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	for page := 1; page <= maxListPages; page++ {
		endpoint := f.baseURL.JoinPath("api", "v2", "tickets")
		params := url.Values{
			"per_page":   {strconv.Itoa(listPageSize)},
			"page":       {strconv.Itoa(page)},
			"order_by":   {"created_at"},
			"order_type": {"asc"},
		}
		if !f.updatedSince.IsZero() {
			params.Set("updated_since", f.updatedSince.UTC().Format(time.RFC3339))
		}
		endpoint.RawQuery = params.Encode()

		var batch []struct {
			ID int64 `json:"id"`
		}
		if err := f.getJSON(ctx, endpoint, "list tickets", &batch); err != nil {
			if errors.Is(err, services.ErrNotFound) {
				break
			}
			return ids, err
		}
		for _, entry := range batch {
			if entry.ID > 0 {
				ids = append(ids, entry.ID)
			}
		}
		if len(batch) < listPageSize {
			break
		}
	}
	f.logger.Info("listed tickets", logging.Int("count", len(ids)))
	return ids, nil
}

type rawAttachment struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	AttachmentURL string `json:"attachment_url"`
	URL           string `json:"url"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

type rawConversation struct {
	artifact.Conversation
	Attachments []rawAttachment `json:"attachments"`
}

type rawTicket struct {
	artifact.Ticket
	Attachments   []rawAttachment   `json:"attachments"`
	Conversations []rawConversation `json:"conversations"`
}

func (a rawAttachment) normalize(kind string) artifact.Attachment {
	link := a.AttachmentURL
	if link == "" {
		link = a.URL
	}
	return artifact.Attachment{
		ID:          a.ID,
		Name:        a.Name,
		URL:         link,
		ContentType: a.ContentType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		Type:        kind,
	}
}

// normalize tags attachment kinds and copies conversation authorship onto
// each conversation attachment.
func (r rawTicket) normalize() *artifact.Ticket {
	ticket := r.Ticket
	ticket.Attachments = make([]artifact.Attachment, 0, len(r.Attachments))
	for _, att := range r.Attachments {
		ticket.Attachments = append(ticket.Attachments, att.normalize(artifact.TypeTicketAttachment))
	}
	ticket.Conversations = make([]artifact.Conversation, 0, len(r.Conversations))
	for _, rc := range r.Conversations {
		conv := rc.Conversation
		conv.Attachments = nil
		for _, att := range rc.Attachments {
			normalized := att.normalize(artifact.TypeConversationAttachment)
			normalized.CreatedAt = conv.CreatedAt
			normalized.UpdatedAt = conv.UpdatedAt
			normalized.UserID = conv.UserID
			normalized.ConversationID = conv.ID
			conv.Attachments = append(conv.Attachments, normalized)
		}
		ticket.Conversations = append(ticket.Conversations, conv)
	}
	return &ticket
}

var _ Client = (*Freshdesk)(nil)
