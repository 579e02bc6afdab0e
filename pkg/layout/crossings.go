package layout

import (
	"slices"

	"github.com/netcanvas/netcanvas/pkg/topology"
)

// PosMap creates a position lookup map from a slice of node keys.
// The returned map maps each key to its index in the slice. This is used to
// convert row orderings into fast position lookups for crossing calculations.
func PosMap(keys []string) map[string]int {
	m := make(map[string]int, len(keys))
	for i, k := range keys {
		m[k] = i
	}
	return m
}

// CountCrossings returns the total number of link crossings for the given
// row orderings. It sums the crossings between each pair of consecutive rows.
// Links are treated as undirected for crossing purposes: a gateway link from
// a leaf row up to the backbone crosses the same way regardless of direction.
func CountCrossings(links []topology.Link, rows [][]string) int {
	crossings := 0
	for i := 0; i < len(rows)-1; i++ {
		crossings += countLayerCrossings(links, rows[i], rows[i+1])
	}
	return crossings
}

// countLayerCrossings counts link crossings between two adjacent rows using a
// Fenwick tree (binary indexed tree) for O(E log V) performance where E is
// the number of links between the rows and V is the size of the lower row.
//
// Two links (u1,v1) and (u2,v2) cross if and only if:
//
//	pos(u1) < pos(u2) AND pos(v1) > pos(v2)
//
// This is equivalent to counting inversions in the sequence of target
// positions when links are sorted by source position.
//
// Returns 0 if either row is empty, as no crossings can exist without links.
func countLayerCrossings(links []topology.Link, upper, lower []string) int {
	if len(upper) == 0 || len(lower) == 0 {
		return 0
	}

	upperPos := PosMap(upper)
	lowerPos := PosMap(lower)

	type edge struct{ upper, lower int }
	edges := make([]edge, 0, len(links))
	for _, l := range links {
		if u, ok := upperPos[l.To]; ok {
			if v, ok := lowerPos[l.From]; ok {
				edges = append(edges, edge{u, v})
				continue
			}
		}
		if u, ok := upperPos[l.From]; ok {
			if v, ok := lowerPos[l.To]; ok {
				edges = append(edges, edge{u, v})
			}
		}
	}
	if len(edges) < 2 {
		return 0
	}

	// Sort edges by source position, then by target position
	slices.SortFunc(edges, func(a, b edge) int {
		if a.upper != b.upper {
			return a.upper - b.upper
		}
		return a.lower - b.lower
	})

	// Count inversions using Fenwick tree
	fenwick := make([]int, len(lower)+1)
	crossings, total := 0, 0
	for _, e := range edges {
		// Query: count edges seen so far with target <= e.lower
		lessOrEqual := 0
		for q := e.lower + 1; q > 0; q -= q & (-q) {
			lessOrEqual += fenwick[q]
		}
		// Crossings = edges seen so far with target > e.lower
		crossings += total - lessOrEqual

		// Update: increment count at target position
		total++
		for idx := e.lower + 1; idx < len(fenwick); idx += idx & (-idx) {
			fenwick[idx]++
		}
	}
	return crossings
}
