// Package cli implements the netcanvas command-line interface.
package cli

import (
	"encoding/json"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/netcanvas/netcanvas/pkg/buildinfo"
	"github.com/netcanvas/netcanvas/pkg/errors"
	"github.com/netcanvas/netcanvas/pkg/topology"
)

// appName is the application name used for directories and display.
const appName = "netcanvas"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Netcanvas serves collaborative network topology diagrams",
		Long:         `Netcanvas builds network topology diagrams from flat device records, lays them out in role- and subnet-aware tiers, and serves them to collaborating editors over a realtime sync protocol.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.exportCommand())

	return root
}

// readRecords loads device records from a JSON file. Both a bare record
// array and a full configuration object ({"name": ..., "data": [...]})
// are accepted.
func readRecords(path string) ([]topology.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading %s", path)
	}

	var records []topology.Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var cfg struct {
		Records []topology.Record `json:"data"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.Records == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s holds neither a record array nor a configuration", path)
	}
	return cfg.Records, nil
}
