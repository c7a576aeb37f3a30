// Package cli implements the strata command-line interface.
//
// This package provides commands for loading HCL scene documents, building
// and inspecting layer hierarchies, validating relative z-order loops,
// rendering Graphviz diagrams, replaying capture streams, and serving the
// HTTP API. The CLI is built using cobra and supports verbose logging via
// the charmbracelet/log library.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/strata-gfx/strata/pkg/buildinfo"
	"github.com/strata-gfx/strata/pkg/engine"
	"github.com/strata-gfx/strata/pkg/scenefile"
)

const (
	// appName is the application name used for directories and display.
	appName = "strata"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath overrides the default config file location.
	ConfigPath string

	config *Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Strata builds and inspects compositor layer hierarchies",
		Long:         `Strata turns flat layer records into display hierarchies: it resolves structural, relative, and mirror relationships, computes paint and input order, detects relative z-order loops, and serves the result over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default "+filepath.Join("~", ".config", appName, "strata.toml")+")")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if lvl := c.Config().LogLevel; lvl != "" {
			c.SetLogLevel(parseLevel(lvl))
		}
		return nil
	}

	root.AddCommand(c.showCommand())
	root.AddCommand(c.zorderCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.replayCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.capturesCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Config returns the loaded config, reading it on first use.
func (c *CLI) Config() *Config {
	if c.config == nil {
		cfg, err := LoadConfig(c.ConfigPath)
		if err != nil {
			c.Logger.Warn("config load failed, using defaults", "err", err)
			cfg = DefaultConfig()
		}
		c.config = cfg
	}
	return c.config
}

// loadEngine parses a scene document and builds an engine from its initial
// layers. With applyTransactions the document's transactions are applied in
// order on top.
func (c *CLI) loadEngine(ctx context.Context, path string, applyTransactions bool, opts ...engine.Option) (*engine.Engine, *scenefile.Document, error) {
	doc, err := scenefile.Load(path)
	if err != nil {
		return nil, nil, err
	}

	opts = append(opts, engine.WithLogger(c.Logger))
	eng, err := engine.New(doc.Initial, opts...)
	if err != nil {
		return nil, nil, err
	}
	if applyTransactions {
		for _, tx := range doc.Transactions {
			if _, err := eng.Apply(ctx, tx); err != nil {
				return nil, nil, err
			}
		}
	}
	return eng, doc, nil
}

// configDir returns the config directory using XDG standard
// (~/.config/strata/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}
