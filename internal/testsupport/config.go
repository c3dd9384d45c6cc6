package testsupport

import (
	"path/filepath"
	"testing"

	"ticketsync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test and
// workflow timings short enough for unit tests.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.LedgerFile = filepath.Join(base, "migration", "ticket_details.json")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "complete_ticket_data")
	cfgVal.Paths.AttachmentDir = filepath.Join(base, "attachments")
	cfgVal.Paths.TrackerFile = filepath.Join(base, "migration", "attachment_urls.json")
	cfgVal.Paths.CompletionDir = filepath.Join(base, "completion_flags")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Source.Domain = "test.freshdesk.com"
	cfgVal.Source.APIKey = "test"
	cfgVal.Source.BaseURL = "http://127.0.0.1:0"
	cfgVal.Source.MaxRetries = 0
	cfgVal.Source.RequestTimeout = 5
	cfgVal.Workers.Attachments = 2
	cfgVal.Workers.Conversations = 2
	cfgVal.Workers.ConversationAttachments = 2
	cfgVal.Workflow.PollIntervalMillis = 5
	cfgVal.Workflow.MaxEmptyChecks = 6
	cfgVal.Workflow.CompletedEmptyChecks = 2
	cfgVal.Workflow.ArtifactWaitSeconds = 0
	cfgVal.Workflow.ConversationArtifactWaitSeconds = 0
	cfgVal.Workflow.ErrorRetryInterval = 0
	cfgVal.Pipeline.ConsumerDelaySeconds = 0
	cfgVal.Pipeline.DependentDelaySeconds = 0
	cfgVal.Status.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithBackend selects the ledger backend on the test config.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Backend = backend
	}
}

// WithSourceURL points the Freshdesk client at a test server.
func WithSourceURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Source.BaseURL = url
	}
}

// WithWorkers overrides the pool size of every stage.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workers.Attachments = n
		b.cfg.Workers.Conversations = n
		b.cfg.Workers.ConversationAttachments = n
	}
}

// WithCompletionFlag toggles the producer completion side channel.
func WithCompletionFlag(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.UseCompletionFlag = enabled
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
