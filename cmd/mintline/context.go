package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"mintline/internal/checkpoint"
	"mintline/internal/config"
	"mintline/internal/ledger"
	"mintline/internal/logging"
	"mintline/internal/storage"
)

// logHubCapacity bounds the in-memory log feed served by the status API.
const logHubCapacity = 2048

// factories build the network-facing collaborators. Tests replace them.
type factories struct {
	ledger  func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Client, error)
	storage func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Uploader, error)
}

func defaultFactories() factories {
	return factories{
		ledger: func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Client, error) {
			client, err := ledger.NewFromConfig(ctx, cfg, logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		storage: storage.New,
	}
}

type commandContext struct {
	configFlag *string
	factories  factories

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	hub *logging.StreamHub
}

func newCommandContext(configFlag *string, f factories) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		factories:  f,
		hub:        logging.NewStreamHub(logHubCapacity),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// logger builds the process logger. Quiet loggers write only to the log
// file so machine-readable stdout stays clean.
func (c *commandContext) logger(quiet bool) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !quiet {
		return logging.NewFromConfig(cfg, c.hub)
	}
	outputs := []string{"stderr"}
	if cfg.Paths.LogDir != "" {
		outputs = []string{c.logPath()}
	}
	return logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Outputs: outputs,
		Hub:     c.hub,
	})
}

func (c *commandContext) logPath() string {
	cfg, err := c.ensureConfig()
	if err != nil || cfg.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(cfg.Paths.LogDir, "mintline.log")
}

func (c *commandContext) withStore(fn func(*checkpoint.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := checkpoint.Open(cfg)
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func closeIfCloser(v any) {
	if closer, ok := v.(io.Closer); ok {
		_ = closer.Close()
	}
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
