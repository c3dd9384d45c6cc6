package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains on-disk locations shared by every process in a run.
type Paths struct {
	DataDir       string `toml:"data_dir"`
	LedgerFile    string `toml:"ledger_file"`
	ArtifactDir   string `toml:"artifact_dir"`
	AttachmentDir string `toml:"attachment_dir"`
	TrackerFile   string `toml:"tracker_file"`
	CompletionDir string `toml:"completion_dir"`
	LogDir        string `toml:"log_dir"`
}

// Source contains the remote helpdesk connection and producer batching.
type Source struct {
	Domain         string `toml:"domain"`
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TicketCSV      string `toml:"ticket_csv"`
	Limit          int    `toml:"limit"`
	BatchSize      int    `toml:"batch_size"`
	Concurrency    int    `toml:"concurrency"`
	RequestTimeout int    `toml:"request_timeout"`
	MaxRetries     int    `toml:"max_retries"`
}

// Ledger selects the coordination ledger backend.
type Ledger struct {
	Backend string `toml:"backend"`
}

// Workers contains the pool size per stage.
type Workers struct {
	Attachments             int `toml:"attachments"`
	Conversations           int `toml:"conversations"`
	ConversationAttachments int `toml:"conversation_attachments"`
}

// Workflow contains worker loop timing and termination thresholds.
type Workflow struct {
	PollIntervalMillis              int  `toml:"poll_interval_ms"`
	MaxEmptyChecks                  int  `toml:"max_empty_checks"`
	CompletedEmptyChecks            int  `toml:"completed_empty_checks"`
	UseCompletionFlag               bool `toml:"use_completion_flag"`
	ArtifactWaitSeconds             int  `toml:"artifact_wait_seconds"`
	ConversationArtifactWaitSeconds int  `toml:"conversation_artifact_wait_seconds"`
	ErrorRetryInterval              int  `toml:"error_retry_interval"`
	MaxClaimErrors                  int  `toml:"max_claim_errors"`
}

// Pipeline contains stagger delays used when one process runs every pool.
type Pipeline struct {
	ConsumerDelaySeconds  int `toml:"consumer_delay_seconds"`
	DependentDelaySeconds int `toml:"dependent_delay_seconds"`
}

// Storage selects where downloaded attachments are written.
type Storage struct {
	Type          string `toml:"type"`
	Bucket        string `toml:"bucket"`
	Prefix        string `toml:"prefix"`
	Region        string `toml:"region"`
	Endpoint      string `toml:"endpoint"`
	PublicBaseURL string `toml:"public_base_url"`
}

// Status configures the optional read-only HTTP status endpoint.
type Status struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications configures ntfy run notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for ticketsync.
//
// Configuration sections by subsystem:
//   - Paths: ledger, artifact, attachment, and log locations
//   - Source: Freshdesk connection and producer batching
//   - Ledger: json document or embedded sqlite backend
//   - Workers: pool size per stage
//   - Workflow: poll interval and termination thresholds
//   - Pipeline: stagger delays for the all-in-one run
//   - Storage: attachment destination (local, s3, gcs)
//   - Status: optional HTTP status endpoint
//   - Notifications: ntfy topic for run milestones
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Source        Source        `toml:"source"`
	Ledger        Ledger        `toml:"ledger"`
	Workers       Workers       `toml:"workers"`
	Workflow      Workflow      `toml:"workflow"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Storage       Storage       `toml:"storage"`
	Status        Status        `toml:"status"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ticketsync/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ticketsync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories every process expects to exist.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.DataDir,
		filepath.Dir(c.Paths.LedgerFile),
		c.Paths.ArtifactDir,
		c.Paths.CompletionDir,
		c.Paths.LogDir,
		filepath.Dir(c.Paths.TrackerFile),
	}
	if c.Storage.Type == StorageLocal {
		dirs = append(dirs, c.Paths.AttachmentDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the ledger location for the configured backend. The
// sqlite backend stores its database beside the JSON document.
func (c *Config) LedgerPath() string {
	if c.Ledger.Backend == BackendSQLite {
		return strings.TrimSuffix(c.Paths.LedgerFile, filepath.Ext(c.Paths.LedgerFile)) + ".db"
	}
	return c.Paths.LedgerFile
}

// CompletionFlagPath returns the producer completion flag path for stage.
func (c *Config) CompletionFlagPath(stage string) string {
	return filepath.Join(c.Paths.CompletionDir, stage+"_completion.json")
}

// PollInterval is the idle sleep between empty claims.
func (w Workflow) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMillis) * time.Millisecond
}

// ErrorRetryDelay is the back-off after a ledger I/O failure.
func (w Workflow) ErrorRetryDelay() time.Duration {
	return time.Duration(w.ErrorRetryInterval) * time.Second
}

// ArtifactWait is the bounded wait for a ticket artifact in the attachment stages.
func (w Workflow) ArtifactWait() time.Duration {
	return time.Duration(w.ArtifactWaitSeconds) * time.Second
}

// ConversationArtifactWait is the bounded wait used by the conversation stage.
func (w Workflow) ConversationArtifactWait() time.Duration {
	return time.Duration(w.ConversationArtifactWaitSeconds) * time.Second
}

// Timeout returns the per-request HTTP timeout for the source client.
func (s Source) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// SourceConfigured reports whether a Freshdesk domain or base URL is set.
func (c *Config) SourceConfigured() bool {
	return strings.TrimSpace(c.Source.BaseURL) != "" || strings.TrimSpace(c.Source.Domain) != ""
}

// ValidateSource ensures the remote source can be contacted. Commands that only
// consume local artifacts skip this check.
func (c *Config) ValidateSource() error {
	if !c.SourceConfigured() {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/ticketsync/config.toml"
		}
		return fmt.Errorf("source.domain is required. Set FRESHDESK_DOMAIN env var or edit %s (create with 'ticketsync config init')", defaultPath)
	}
	if strings.TrimSpace(c.Source.APIKey) == "" {
		return errors.New("source.api_key is required. Set FRESHDESK_API_KEY env var")
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
