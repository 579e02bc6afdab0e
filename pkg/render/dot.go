// Package render converts a topology graph into Graphviz DOT and rasterized
// formats. Subnet groups become DOT clusters; gateway links become directed
// edges. When layout positions are supplied, nodes are pinned so Graphviz
// honors the tiered coordinates instead of computing its own.
package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/netcanvas/netcanvas/pkg/topology"
)

// Options configures DOT generation.
type Options struct {
	// Detailed includes the IP address and device type in node labels.
	// When false, only the hostname is shown.
	Detailed bool

	// Positions pins nodes to precomputed layout coordinates. Keys are node
	// keys; missing entries are left for Graphviz to place. Nil lets
	// Graphviz lay out the whole graph.
	Positions map[string]topology.Position
}

// ToDOT converts a topology graph to Graphviz DOT. The result renders with
// [RenderSVG] or [RenderPNG]; pinned positions require the neato engine,
// which both functions select automatically.
func ToDOT(g topology.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph topology {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	grouped := make(map[string]bool)
	for _, grp := range g.Groups {
		for _, key := range grp.MemberKeys {
			grouped[key] = true
		}
	}
	byKey := make(map[string]topology.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		byKey[n.Key] = n
	}

	// Backbone and ungrouped nodes at top level.
	for _, n := range g.Nodes {
		if !grouped[n.Key] {
			fmt.Fprintf(&buf, "  %q [%s];\n", n.Key, strings.Join(nodeAttrs(n, opts), ", "))
		}
	}

	for i, grp := range g.Groups {
		fmt.Fprintf(&buf, "\n  subgraph \"cluster_%d\" {\n", i)
		fmt.Fprintf(&buf, "    label=%q;\n", grp.Key)
		buf.WriteString("    style=dashed;\n")
		for _, key := range grp.MemberKeys {
			n, ok := byKey[key]
			if !ok {
				continue
			}
			fmt.Fprintf(&buf, "    %q [%s];\n", n.Key, strings.Join(nodeAttrs(n, opts), ", "))
		}
		buf.WriteString("  }\n")
	}

	// The unknown-gateway sentinel appears only as a link target; declare it
	// so edges referencing it get a visible placeholder.
	if sentinel := sentinelTarget(g); sentinel != "" {
		fmt.Fprintf(&buf, "\n  %q [style=\"rounded,filled,dashed\", fillcolor=lightgrey];\n", sentinel)
	}

	buf.WriteString("\n")
	for _, l := range g.Links {
		fmt.Fprintf(&buf, "  %q -> %q;\n", l.From, l.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n topology.Node, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", nodeLabel(n, opts.Detailed))}
	if pos, ok := opts.Positions[n.Key]; ok {
		// Graphviz points, y inverted: layout y grows downward. Adding zero
		// normalizes IEEE negative zero so y=0 formats as "0", not "-0".
		attrs = append(attrs, fmt.Sprintf("pos=\"%.0f,%.0f!\"", pos.X, -pos.Y+0))
	}
	return attrs
}

func nodeLabel(n topology.Node, detailed bool) string {
	if !detailed {
		return n.Hostname
	}
	parts := []string{n.Hostname}
	if n.IPAddress != "" {
		parts = append(parts, n.IPAddress)
	}
	if n.DeviceType != "" {
		parts = append(parts, n.DeviceType)
	}
	return strings.Join(parts, "\n")
}

func sentinelTarget(g topology.Graph) string {
	for _, l := range g.Links {
		if l.To == topology.UnknownGateway {
			return topology.UnknownGateway
		}
	}
	return ""
}

// RenderSVG renders a DOT graph to SVG using Graphviz. The neato engine is
// used when the DOT pins positions; otherwise dot's layered layout applies.
func RenderSVG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.SVG)
}

// RenderPNG renders a DOT graph to PNG using Graphviz.
func RenderPNG(dot string) ([]byte, error) {
	return renderFormat(dot, graphviz.PNG)
}

func renderFormat(dot string, format graphviz.Format) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	if strings.Contains(dot, "!\"") {
		gv.SetLayout(graphviz.NEATO)
	}

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	out := buf.Bytes()
	if format == graphviz.SVG {
		out = normalizeViewBox(out)
	}
	return out, nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.-]+)\s+([0-9.-]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root <svg> tag so the viewBox starts at the
// origin with explicit pixel dimensions, which embeds cleanly in the canvas.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
