package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ticketsync/internal/config"
	"ticketsync/internal/ledger"
	"ticketsync/internal/ledgeraccess"
	"ticketsync/internal/logging"
	"ticketsync/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	t.Setenv("HOME", filepath.Join(testsupport.BaseDir(cfg), "home"))
	cfg.Status.Bind = ""
	cfg.Workflow.ArtifactWaitSeconds = 1
	cfg.Workflow.ConversationArtifactWaitSeconds = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Logging.Level = "warn"

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// withStore opens the configured ledger for the duration of fn so the CLI
// under test sees a released lock afterwards.
func withStore(t *testing.T, cfg *config.Config, fn func(store ledger.Store)) {
	t.Helper()
	store, err := ledgeraccess.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("ledgeraccess.Open: %v", err)
	}
	defer store.Close()
	fn(store)
}

func statusOf(t *testing.T, cfg *config.Config, id int64, stg ledger.Stage) ledger.Status {
	t.Helper()
	var status ledger.Status
	withStore(t, cfg, func(store ledger.Store) {
		var err error
		status, err = store.StageStatus(context.Background(), id, stg)
		if err != nil {
			t.Fatalf("StageStatus: %v", err)
		}
	})
	return status
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
