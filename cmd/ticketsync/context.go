package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"ticketsync/internal/config"
	"ticketsync/internal/ledgeraccess"
	"ticketsync/internal/logging"
	"ticketsync/internal/pipeline"
	"ticketsync/internal/statusapi"
	"ticketsync/internal/tracker"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// runLogger returns the logger used by commands that do work: stdout plus a
// per-run log file.
func (c *commandContext) runLogger() (*config.Config, *slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// quietLogger keeps stdout clean for read-only commands; ledger warnings
// still reach stderr.
func quietLogger() *slog.Logger {
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

// withComponents builds the pipeline collaborators for the duration of fn.
func (c *commandContext) withComponents(cmd *cobra.Command, fn func(context.Context, *pipeline.Components) error) error {
	cfg, logger, err := c.runLogger()
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	components, err := pipeline.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	return fn(ctx, components)
}

// openAccess prefers a running status endpoint and falls back to reading the
// ledger directly.
func (c *commandContext) openAccess(ctx context.Context) (ledgeraccess.Session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return ledgeraccess.Session{}, err
	}
	var dial func() (*statusapi.Client, error)
	if bind := cfg.Status.Bind; bind != "" {
		dial = func() (*statusapi.Client, error) {
			return statusapi.Dial(ctx, bind, cfg.Status.Token)
		}
	}
	return ledgeraccess.OpenWithFallback(dial, func() (ledgeraccess.Access, func() error, error) {
		logger := quietLogger()
		store, err := ledgeraccess.Open(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		attachments, err := tracker.Open(cfg.Paths.TrackerFile, logger)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		closeFn := func() error {
			attachmentsErr := attachments.Close()
			if err := store.Close(); err != nil {
				return err
			}
			return attachmentsErr
		}
		return ledgeraccess.NewStoreAccess(store, attachments), closeFn, nil
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
