package workflow

import (
	"context"

	"ticketsync/internal/ledger"
	"ticketsync/internal/stage"
)

// Counts are per-run pool counters.
type Counts struct {
	Claimed   int `json:"claimed"`
	Done      int `json:"done"`
	Empty     int `json:"empty"`
	Failed    int `json:"failed"`
	Finalized int `json:"finalized"`
}

// Status is a point-in-time view of a pool.
type Status struct {
	Stage         ledger.Stage `json:"stage"`
	Running       bool         `json:"running"`
	ActiveWorkers int          `json:"active_workers"`
	Counts        Counts       `json:"counts"`
	LastTicket    int64        `json:"last_ticket,omitempty"`
	LastError     string       `json:"last_error,omitempty"`
	Health        stage.Health `json:"health"`
}

// Status returns the latest pool information.
func (p *Pool) Status(ctx context.Context) Status {
	p.mu.RLock()
	summary := Status{
		Stage:         p.Stage(),
		Running:       p.running,
		ActiveWorkers: p.active,
		Counts:        p.counts,
		LastTicket:    p.lastID,
	}
	if p.lastErr != nil {
		summary.LastError = p.lastErr.Error()
	}
	p.mu.RUnlock()
	summary.Health = p.proc.HealthCheck(ctx)
	return summary
}

func (p *Pool) adjustActive(delta int) {
	p.mu.Lock()
	p.active += delta
	p.mu.Unlock()
}

func (p *Pool) recordClaim(id int64) {
	p.mu.Lock()
	p.counts.Claimed++
	p.lastID = id
	p.mu.Unlock()
}

func (p *Pool) recordOutcome(status ledger.Status, failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if failed {
		p.counts.Failed++
	}
	if status.IsDone() {
		p.counts.Done++
	} else {
		p.counts.Empty++
	}
}

func (p *Pool) setLastError(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
}

func (p *Pool) recordAbandon(err error) {
	p.mu.Lock()
	p.lastErr = err
	p.abandoned++
	p.mu.Unlock()
}
