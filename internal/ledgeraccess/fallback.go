package ledgeraccess

import (
	"fmt"

	"ticketsync/internal/statusapi"
)

// Session represents an access handle and its cleanup function.
type Session struct {
	Access Access
	Remote bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries the status endpoint first, then falls back to direct
// ledger access.
func OpenWithFallback(
	dial func() (*statusapi.Client, error),
	openLocal func() (Access, func() error, error),
) (Session, error) {
	if dial != nil {
		if client, err := dial(); err == nil {
			return Session{
				Access: client,
				Remote: true,
				close:  client.Close,
			}, nil
		}
	}

	if openLocal == nil {
		return Session{}, fmt.Errorf("open ledger: no local opener configured")
	}
	access, closeFn, err := openLocal()
	if err != nil {
		return Session{}, fmt.Errorf("open ledger: %w", err)
	}
	return Session{
		Access: access,
		close:  closeFn,
	}, nil
}
