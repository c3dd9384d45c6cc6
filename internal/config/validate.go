package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeout < 0 {
		return errors.New("notifications.request_timeout must be zero or positive")
	}
	return c.validateLogging()
}

func (c *Config) validateSource() error {
	if err := ensurePositiveMap(map[string]int{
		"source.batch_size":      c.Source.BatchSize,
		"source.concurrency":     c.Source.Concurrency,
		"source.request_timeout": c.Source.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Source.Limit < 0 {
		return errors.New("source.limit must be zero or positive")
	}
	if c.Source.MaxRetries < 0 {
		return errors.New("source.max_retries must be zero or positive")
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case BackendJSON, BackendSQLite:
		return nil
	default:
		return fmt.Errorf("ledger.backend: unsupported value %q (want json or sqlite)", c.Ledger.Backend)
	}
}

func (c *Config) validateWorkers() error {
	return ensurePositiveMap(map[string]int{
		"workers.attachments":              c.Workers.Attachments,
		"workers.conversations":            c.Workers.Conversations,
		"workers.conversation_attachments": c.Workers.ConversationAttachments,
	})
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval_ms":                   c.Workflow.PollIntervalMillis,
		"workflow.max_empty_checks":                   c.Workflow.MaxEmptyChecks,
		"workflow.completed_empty_checks":             c.Workflow.CompletedEmptyChecks,
		"workflow.error_retry_interval":               c.Workflow.ErrorRetryInterval,
		"workflow.max_claim_errors":                   c.Workflow.MaxClaimErrors,
		"workflow.artifact_wait_seconds":              c.Workflow.ArtifactWaitSeconds,
		"workflow.conversation_artifact_wait_seconds": c.Workflow.ConversationArtifactWaitSeconds,
	})
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.ConsumerDelaySeconds < 0 {
		return errors.New("pipeline.consumer_delay_seconds must be zero or positive")
	}
	if c.Pipeline.DependentDelaySeconds < 0 {
		return errors.New("pipeline.dependent_delay_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Type {
	case StorageLocal:
		return nil
	case StorageS3, StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set when storage.type is %q", c.Storage.Type)
		}
		return nil
	default:
		return fmt.Errorf("storage.type: unsupported value %q (want local, s3, or gcs)", c.Storage.Type)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be zero or positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
