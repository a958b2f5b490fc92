// Package cli implements the always-fetch command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	alwaysfetch "github.com/always-cache/always-fetch"
	"github.com/always-cache/always-fetch/pkg/config"
)

// this is set by goreleaser
var version string

func init() {
	if version == "" {
		version = "DEV"
	}
}

// CLI holds state shared by all commands.
type CLI struct {
	Logger zerolog.Logger

	out    io.Writer
	errOut io.Writer
	config config.Config

	// flags
	configFilename string
	cacheProvider  string
	cachePath      string
	logFilename    string
	verbosity      int

	logFile *os.File
}

// New creates a CLI writing command output to out and logs to errOut.
func New(out, errOut io.Writer) *CLI {
	return &CLI{
		Logger: zerolog.Nop(),
		out:    out,
		errOut: errOut,
	}
}

// RootCommand creates the root command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "always-fetch",
		Short:             "Retrieve the text behind about:, http(s):, file:, data: and view-source: URLs",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logFile != nil {
				c.logFile.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configFilename, "config", "c", "", "Path to config file (.yaml, .yml or .toml)")
	flags.StringVar(&c.cacheProvider, "cache", "", "Caching provider to use: memory, sqlite, leveldb or redis (overrides config)")
	flags.StringVar(&c.cachePath, "db", "", "Cache DB file or directory name (overrides config)")
	flags.StringVar(&c.logFilename, "log-file", "", "Log file to use (in addition to stderr)")
	flags.CountVarP(&c.verbosity, "verbose", "v", "Verbosity: -v debug, -vv trace logging")

	root.AddCommand(c.getCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	if err := c.setupLogger(); err != nil {
		return err
	}

	c.config = config.Default()
	if c.configFilename != "" {
		cfg, err := config.Load(c.configFilename)
		if err != nil {
			return err
		}
		c.config = cfg
	}
	if c.cacheProvider != "" {
		c.config.Cache.Provider = c.cacheProvider
	}
	if c.cachePath != "" {
		c.config.Cache.Path = c.cachePath
	}
	return nil
}

// setupLogger logs to errOut and, if specified, a log file.
func (c *CLI) setupLogger() error {
	logLevel := zerolog.InfoLevel
	switch {
	case c.verbosity >= 2:
		logLevel = zerolog.TraceLevel
	case c.verbosity == 1:
		logLevel = zerolog.DebugLevel
	}

	logOutputs := []io.Writer{zerolog.ConsoleWriter{Out: c.errOut}}
	if c.logFilename != "" {
		logFile, err := os.OpenFile(c.logFilename, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		c.logFile = logFile
		logOutputs = append(logOutputs, logFile)
	}
	c.Logger = zerolog.New(zerolog.MultiLevelWriter(logOutputs...)).
		Level(logLevel).
		With().Timestamp().Str("version", version).Logger()
	return nil
}

// openClient opens the configured cache and creates a client on top of it.
func (c *CLI) openClient(cmd *cobra.Command) (*alwaysfetch.Client, error) {
	provider, err := c.config.OpenCache(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", c.config.Cache.Provider, err)
	}
	return alwaysfetch.New(c.config.ClientConfig(provider, &c.Logger)), nil
}
