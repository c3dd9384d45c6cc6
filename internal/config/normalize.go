package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSource()
	c.normalizeLedger()
	c.normalizeStorage()
	c.normalizeLogging()
	c.Status.Bind = strings.TrimSpace(c.Status.Bind)
	c.Status.Token = strings.TrimSpace(c.Status.Token)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.ledger_file", &c.Paths.LedgerFile, defaultLedgerFile},
		{"paths.artifact_dir", &c.Paths.ArtifactDir, defaultArtifactDir},
		{"paths.attachment_dir", &c.Paths.AttachmentDir, defaultAttachmentDir},
		{"paths.tracker_file", &c.Paths.TrackerFile, defaultTrackerFile},
		{"paths.completion_dir", &c.Paths.CompletionDir, defaultCompletionDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		value := strings.TrimSpace(*field.value)
		if value == "" {
			value = field.fallback
		}
		if !strings.HasPrefix(value, "~") && !filepath.IsAbs(value) {
			value = filepath.Join(c.Paths.DataDir, value)
		}
		if *field.value, err = expandPath(value); err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
	}
	return nil
}

func (c *Config) normalizeSource() {
	if c.Source.Domain == "" {
		if value, ok := os.LookupEnv("FRESHDESK_DOMAIN"); ok {
			c.Source.Domain = value
		}
	}
	if c.Source.APIKey == "" {
		if value, ok := os.LookupEnv("FRESHDESK_API_KEY"); ok {
			c.Source.APIKey = value
		}
	}
	if c.Source.TicketCSV == "" {
		if value, ok := os.LookupEnv("TICKET_IDS_CSV_FILE"); ok {
			c.Source.TicketCSV = value
		}
	}
	c.Source.Domain = strings.TrimSpace(c.Source.Domain)
	c.Source.Domain = strings.TrimPrefix(c.Source.Domain, "https://")
	c.Source.Domain = strings.TrimSuffix(c.Source.Domain, "/")
	c.Source.APIKey = strings.TrimSpace(c.Source.APIKey)
	c.Source.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.Source.BaseURL), "/")
	if c.Source.BaseURL == "" && c.Source.Domain != "" {
		c.Source.BaseURL = "https://" + c.Source.Domain
	}
	if csv := strings.TrimSpace(c.Source.TicketCSV); csv != "" {
		if expanded, err := expandPath(csv); err == nil {
			c.Source.TicketCSV = expanded
		}
	}
}

func (c *Config) normalizeLedger() {
	c.Ledger.Backend = strings.ToLower(strings.TrimSpace(c.Ledger.Backend))
	if c.Ledger.Backend == "" {
		c.Ledger.Backend = BackendJSON
	}
}

func (c *Config) normalizeStorage() {
	if c.Storage.Type == "" {
		if value, ok := os.LookupEnv("ATTACHMENT_STORAGE_TYPE"); ok {
			c.Storage.Type = value
		}
	}
	c.Storage.Type = strings.ToLower(strings.TrimSpace(c.Storage.Type))
	if c.Storage.Type == "" {
		c.Storage.Type = StorageLocal
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultS3Region
	}
	c.Storage.Endpoint = strings.TrimSuffix(strings.TrimSpace(c.Storage.Endpoint), "/")
	c.Storage.PublicBaseURL = strings.TrimSuffix(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
