package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ticketsync/internal/artifact"
	"ticketsync/internal/config"
)

// WriteFile fills path with size placeholder bytes, standing in for an
// already-downloaded attachment. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteTicket stores ticket as the producer would, under the configured
// artifact directory.
func WriteTicket(t testing.TB, cfg *config.Config, ticket *artifact.Ticket) {
	t.Helper()

	if err := artifact.NewStore(cfg.Paths.ArtifactDir).Write(ticket); err != nil {
		t.Fatalf("write ticket %d: %v", ticket.ID, err)
	}
}
