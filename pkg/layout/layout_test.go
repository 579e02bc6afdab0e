package layout

import (
	"reflect"
	"testing"

	"github.com/netcanvas/netcanvas/pkg/topology"
)

func buildGraph(records []topology.Record) topology.Graph {
	return topology.Build(records)
}

func record(hostname, ip, devType, gateway string) topology.Record {
	return topology.Record{
		Device:  topology.Device{Hostname: hostname, IPAddress: ip, DeviceType: devType},
		Network: topology.NetworkInfo{Gateway: gateway},
	}
}

func TestCompute_RowAssignment(t *testing.T) {
	g := buildGraph([]topology.Record{
		record("gw-1", "10.0.1.1", "router", ""),
		record("fw-1", "10.0.1.2", "firewall", ""),
		record("sw-1", "10.0.1.3", "switch", ""),
		record("web-1", "10.0.1.5", "server", "10.0.1.1"),
		record("db-1", "10.0.2.4", "server", "10.0.1.1"),
	})

	positions := New().Compute(g)

	wantY := map[string]float64{
		"gw-1":  0,   // backbone row
		"fw-1":  0,   // backbone row
		"sw-1":  150, // switch row
		"web-1": 300, // first group row
		"db-1":  450, // second group row
	}
	for key, y := range wantY {
		p, ok := positions[key]
		if !ok {
			t.Fatalf("no position for %q", key)
		}
		if p.Y != y {
			t.Errorf("%s: Y = %v, want %v", key, p.Y, y)
		}
	}
}

func TestCompute_EndToEndScenario(t *testing.T) {
	// Three records: a router and two servers in different subnets, both
	// pointing at the router as gateway.
	g := buildGraph([]topology.Record{
		record("gw-1", "10.0.1.1", "router", ""),
		record("web-1", "10.0.1.5", "server", "10.0.1.1"),
		record("db-1", "10.0.2.9", "server", "10.0.1.1"),
	})

	if len(g.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(g.Nodes))
	}
	if len(g.Links) != 2 {
		t.Fatalf("links = %d, want 2", len(g.Links))
	}
	for _, l := range g.Links {
		if l.To != "gw-1" {
			t.Errorf("link %v should target the router", l)
		}
	}
	if len(g.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(g.Groups))
	}

	positions := New().Compute(g)

	if got := positions["gw-1"]; got != (topology.Position{X: 0, Y: 0}) {
		t.Errorf("router at %v, want (0,0)", got)
	}
	if got := positions["web-1"]; got != (topology.Position{X: 0, Y: 300}) {
		t.Errorf("web-1 at %v, want (0,300)", got)
	}
	if got := positions["db-1"]; got != (topology.Position{X: 0, Y: 450}) {
		t.Errorf("db-1 at %v, want (0,450)", got)
	}
}

func TestCompute_Idempotent(t *testing.T) {
	g := buildGraph([]topology.Record{
		record("gw-1", "10.0.1.1", "router", ""),
		record("gw-2", "10.0.2.1", "router", ""),
		record("sw-1", "10.0.1.3", "switch", ""),
		record("a", "10.0.1.5", "server", "10.0.2.1"),
		record("b", "10.0.1.6", "server", "10.0.1.1"),
		record("c", "10.0.2.5", "client", "10.0.2.1"),
	})

	e := New()
	first := e.Compute(g)
	second := e.Compute(g)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Compute is not deterministic:\nfirst:  %v\nsecond: %v", first, second)
	}
}

func TestCompute_EmptyBuckets(t *testing.T) {
	// No routers and no switches: the backbone and switch rows are empty
	// but still reserve their y bands.
	g := buildGraph([]topology.Record{
		record("a", "10.0.1.5", "server", ""),
	})

	positions := New().Compute(g)

	if got := positions["a"].Y; got != 300 {
		t.Errorf("a.Y = %v, want 300 (group rows start below reserved bands)", got)
	}
}

func TestCompute_EmptyGraph(t *testing.T) {
	positions := New().Compute(topology.Graph{})
	if len(positions) != 0 {
		t.Errorf("positions = %v, want empty", positions)
	}
}

func TestCompute_UnknownTypeGroupedAsLeaf(t *testing.T) {
	g := buildGraph([]topology.Record{
		record("mystery", "10.0.1.7", "toaster", ""),
	})

	positions := New().Compute(g)
	if got := positions["mystery"].Y; got < 300 {
		t.Errorf("mystery.Y = %v, want >= 300 (unknown types are leaf devices)", got)
	}
}

func TestCompute_BackboneRowCentering(t *testing.T) {
	g := buildGraph([]topology.Record{
		record("gw-1", "10.0.1.1", "router", ""),
		record("gw-2", "10.0.2.1", "router", ""),
	})

	positions := New().Compute(g)

	// Two backbone nodes at spacing 150: slots centered at -75 and +75.
	xs := map[float64]bool{positions["gw-1"].X: true, positions["gw-2"].X: true}
	if !xs[-75] || !xs[75] {
		t.Errorf("backbone xs = %v, want {-75, 75}", xs)
	}
}

func TestCompute_OrderingReducesCrossings(t *testing.T) {
	// Discovery order creates crossings: a→gw-2 and b→gw-1 cross when the
	// leaf row keeps (a, b) under backbone (gw-1, gw-2).
	g := buildGraph([]topology.Record{
		record("gw-1", "10.0.1.1", "router", ""),
		record("gw-2", "10.0.1.2", "router", ""),
		record("a", "10.0.2.5", "server", "10.0.1.2"),
		record("b", "10.0.2.6", "server", "10.0.1.1"),
	})

	positions := New().Compute(g)

	// After ordering, b should sit left of a to untangle the links.
	if positions["b"].X >= positions["a"].X {
		t.Errorf("b.X = %v, a.X = %v; want b left of a", positions["b"].X, positions["a"].X)
	}
	// The ordering pass must never move nodes across rows.
	if positions["a"].Y != positions["b"].Y {
		t.Errorf("a and b should share a row: %v vs %v", positions["a"].Y, positions["b"].Y)
	}
}
