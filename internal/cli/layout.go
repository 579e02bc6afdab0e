package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netcanvas/netcanvas/pkg/layout"
	"github.com/netcanvas/netcanvas/pkg/topology"
)

// layoutFile is the layout command's output: the derived graph plus the
// computed node positions.
type layoutFile struct {
	topology.Graph
	Positions map[string]topology.Position `json:"positions"`
}

// layoutCommand creates the layout command for computing diagram layouts.
func (c *CLI) layoutCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "layout [records.json]",
		Short: "Compute a tiered diagram layout from device records",
		Long: `Compute a tiered diagram layout from device records.

The layout command takes a JSON file of device records (either a bare array
or a saved configuration) and derives the topology graph: routers and
firewalls on the backbone row, switches below them, and one row per /24
subnet. The output is a layout.json with the graph and node positions,
ready for 'export' or the canvas frontend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.layout.json)")
	return cmd
}

func (c *CLI) runLayout(input, output string) error {
	records, err := readRecords(input)
	if err != nil {
		return err
	}

	graph := topology.Build(records)
	positions := layout.New().Compute(graph)

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".layout.json"
	}

	data, err := json.MarshalIndent(layoutFile{Graph: graph, Positions: positions}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printStats(len(graph.Nodes), len(graph.Links), len(graph.Groups))
	return nil
}
