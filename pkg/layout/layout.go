// Package layout places a topology graph on a 2D plane using tiered,
// role-first placement.
//
// The algorithm assigns every node to a horizontal row: routers and firewalls
// form the backbone at the top, switches the distribution layer below, and
// each subnet group occupies its own leaf row. Within a row, nodes are packed
// at a fixed column spacing and centered around x=0. A generic ordering pass
// then permutes nodes within their rows to reduce link crossings; it never
// moves a node across rows, so the row assignment is an invariant of the
// graph and re-running the layout yields identical row (y) coordinates.
//
// # Usage
//
//	positions := layout.New().Compute(graph)
//	for key, p := range positions {
//	    fmt.Println(key, p.X, p.Y)
//	}
package layout

import (
	"sort"
	"strings"

	"github.com/netcanvas/netcanvas/pkg/topology"
)

// Default placement constants, matching the diagram's visual grid.
const (
	// DefaultRowSpacing is the vertical distance between rows.
	DefaultRowSpacing = 150.0

	// DefaultInfraSpacing is the column spacing for backbone rows
	// (routers, firewalls, switches).
	DefaultInfraSpacing = 150.0

	// DefaultGroupSpacing is the tighter column spacing for subnet rows.
	DefaultGroupSpacing = 100.0

	// DefaultSweeps is the number of ordering passes over the rows.
	DefaultSweeps = 4
)

// Engine computes node positions for a topology graph. The zero value is not
// usable; create one with New. An Engine is stateless and safe for concurrent
// use by multiple goroutines.
type Engine struct {
	RowSpacing   float64
	InfraSpacing float64
	GroupSpacing float64
	Sweeps       int
}

// New creates an Engine with default spacing.
func New() Engine {
	return Engine{
		RowSpacing:   DefaultRowSpacing,
		InfraSpacing: DefaultInfraSpacing,
		GroupSpacing: DefaultGroupSpacing,
		Sweeps:       DefaultSweeps,
	}
}

// row is one horizontal band of the layout with its column spacing.
type row struct {
	keys    []string
	spacing float64
}

// Compute assigns a position to every node in the graph.
//
// Row assignment is deterministic and idempotent: the same graph always
// produces the same y coordinate per node. Horizontal ordering within a row
// is the result of a crossing-minimization sweep and is likewise
// deterministic for a fixed graph, but is not part of the layout contract.
func (e Engine) Compute(g topology.Graph) map[string]topology.Position {
	rows := e.buildRows(g)
	rows = e.order(rows, g.Links)

	positions := make(map[string]topology.Position, len(g.Nodes))
	for i, r := range rows {
		y := float64(i) * e.RowSpacing
		// Rows are centered: the row spans [-width/2, width/2] and each
		// node sits in the middle of its column, so a single node lands
		// exactly on x=0.
		width := float64(len(r.keys)) * r.spacing
		x := -width/2 + r.spacing/2
		for _, key := range r.keys {
			positions[key] = topology.Position{X: x, Y: y}
			x += r.spacing
		}
	}
	return positions
}

// buildRows partitions nodes into rows: backbone (routers+firewalls), then
// switches, then one row per group in discovery order. Non-infrastructure
// nodes missing from every group (a graph not produced by topology.Build)
// are collected into a trailing row rather than dropped. Empty buckets still
// contribute a zero-width row so the group rows always start at row 2.
func (e Engine) buildRows(g topology.Graph) []row {
	var backbone, switches []string
	grouped := make(map[string]bool)
	for _, grp := range g.Groups {
		for _, k := range grp.MemberKeys {
			grouped[k] = true
		}
	}

	var leftovers []string
	for _, n := range g.Nodes {
		switch strings.ToLower(n.DeviceType) {
		case topology.DeviceRouter, topology.DeviceFirewall:
			backbone = append(backbone, n.Key)
		case topology.DeviceSwitch:
			switches = append(switches, n.Key)
		default:
			if !grouped[n.Key] {
				leftovers = append(leftovers, n.Key)
			}
		}
	}

	rows := []row{
		{keys: backbone, spacing: e.InfraSpacing},
		{keys: switches, spacing: e.InfraSpacing},
	}
	for _, grp := range g.Groups {
		keys := make([]string, len(grp.MemberKeys))
		copy(keys, grp.MemberKeys)
		rows = append(rows, row{keys: keys, spacing: e.GroupSpacing})
	}
	if len(leftovers) > 0 {
		rows = append(rows, row{keys: leftovers, spacing: e.GroupSpacing})
	}
	return rows
}

// order runs barycenter sweeps over the rows to reduce link crossings.
// Each sweep reorders every row below the backbone by the mean position of
// its link neighbors in the rows above; a sweep is kept only if it does not
// increase the total crossing count, so the result is never worse than the
// discovery-order packing. Nodes never change rows.
func (e Engine) order(rows []row, links []topology.Link) []row {
	if len(links) == 0 {
		return rows
	}

	neighbors := make(map[string][]string)
	for _, l := range links {
		neighbors[l.From] = append(neighbors[l.From], l.To)
		neighbors[l.To] = append(neighbors[l.To], l.From)
	}

	rowOf := make(map[string]int)
	for i, r := range rows {
		for _, k := range r.keys {
			rowOf[k] = i
		}
	}

	best := snapshot(rows)
	bestCrossings := CountCrossings(links, keysOf(best))

	current := snapshot(rows)
	for sweep := 0; sweep < e.Sweeps; sweep++ {
		for i := 1; i < len(current); i++ {
			reorderRow(current, i, neighbors, rowOf)
		}
		if c := CountCrossings(links, keysOf(current)); c <= bestCrossings {
			best = snapshot(current)
			bestCrossings = c
		}
	}

	return best
}

// reorderRow sorts row i by the barycenter of each node's neighbors in the
// rows above. Nodes without upward neighbors keep their relative order.
func reorderRow(rows []row, i int, neighbors map[string][]string, rowOf map[string]int) {
	above := make(map[string]int)
	for j := 0; j < i; j++ {
		for pos, k := range rows[j].keys {
			above[k] = pos
		}
	}

	keys := rows[i].keys
	bary := make(map[string]float64, len(keys))
	for pos, k := range keys {
		sum, count := 0.0, 0
		for _, nb := range neighbors[k] {
			if rowOf[nb] < i {
				if p, ok := above[nb]; ok {
					sum += float64(p)
					count++
				}
			}
		}
		if count == 0 {
			// Anchor unconnected nodes at their current slot.
			bary[k] = float64(pos)
		} else {
			bary[k] = sum / float64(count)
		}
	}

	sort.SliceStable(keys, func(a, b int) bool {
		return bary[keys[a]] < bary[keys[b]]
	})
}

func snapshot(rows []row) []row {
	out := make([]row, len(rows))
	for i, r := range rows {
		keys := make([]string, len(r.keys))
		copy(keys, r.keys)
		out[i] = row{keys: keys, spacing: r.spacing}
	}
	return out
}

func keysOf(rows []row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.keys
	}
	return out
}
