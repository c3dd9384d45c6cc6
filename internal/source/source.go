package source

import (
	"context"
	"slices"

	"ticketsync/internal/artifact"
)

// Lister returns the ticket ids a run should cover.
type Lister interface {
	ListTicketIDs(ctx context.Context) ([]int64, error)
}

// Fetcher retrieves one complete ticket including conversations.
type Fetcher interface {
	FetchTicket(ctx context.Context, id int64) (*artifact.Ticket, error)
}

// Client is the full remote source contract consumed by the producer.
type Client interface {
	Lister
	Fetcher
}

// StaticLister serves a fixed id list, used for explicit ids on the command line.
type StaticLister []int64

func (s StaticLister) ListTicketIDs(context.Context) ([]int64, error) {
	return slices.Clone(s), nil
}

// Compose pairs an id Lister with a Fetcher.
func Compose(lister Lister, fetcher Fetcher) Client {
	return composed{Lister: lister, Fetcher: fetcher}
}

type composed struct {
	Lister
	Fetcher
}
