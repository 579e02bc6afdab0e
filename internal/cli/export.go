package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/netcanvas/netcanvas/pkg/layout"
	"github.com/netcanvas/netcanvas/pkg/render"
	"github.com/netcanvas/netcanvas/pkg/topology"
)

// exportCommand creates the export command for rendering diagrams to files.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		output   string
		format   string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "export [records.json]",
		Short: "Render device records to a diagram file",
		Long: `Render device records to a diagram file.

Takes the same input as 'layout' and writes a rendered diagram. Supported
formats: dot (Graphviz source), svg, png. Node positions come from the
tiered layout engine and are pinned in the output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExport(args[0], output, format, detailed)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.<format>)")
	cmd.Flags().StringVarP(&format, "format", "f", "svg", "output format: svg (default), png, dot")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include IP address and device type in labels")
	return cmd
}

func (c *CLI) runExport(input, output, format string, detailed bool) error {
	records, err := readRecords(input)
	if err != nil {
		return err
	}

	graph := topology.Build(records)
	positions := layout.New().Compute(graph)
	dot := render.ToDOT(graph, render.Options{Detailed: detailed, Positions: positions})

	var data []byte
	switch format {
	case "dot":
		data = []byte(dot)
	case "svg":
		if data, err = render.RenderSVG(dot); err != nil {
			printError("Render failed")
			return err
		}
	case "png":
		if data, err = render.RenderPNG(dot); err != nil {
			printError("Render failed")
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want dot, svg or png)", format)
	}

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + "." + format
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	printSuccess("Export complete")
	printFile(outputPath)
	printStats(len(graph.Nodes), len(graph.Links), len(graph.Groups))
	return nil
}
