package topology_test

import (
	"testing"

	"github.com/soniclab-network/soniclab/internal/testutil"
	"github.com/soniclab-network/soniclab/pkg/topology"
)

func TestConnected(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	if !topo.Connected() {
		t.Error("diamond topology should be connected")
	}
}

func TestHasDisjointPaths_Diamond(t *testing.T) {
	topo := testutil.DiamondTopology(t)

	tests := []struct {
		pair topology.Pair
		want bool
	}{
		{topology.Pair{A: "sonic-1", Z: "sonic-4"}, true},  // two disjoint paths
		{topology.Pair{A: "sonic-4", Z: "sonic-1"}, true},  // unordered
		{topology.Pair{A: "sonic-2", Z: "sonic-3"}, true},  // adjacent, plus long way round
		{topology.Pair{A: "sonic-2", Z: "sonic-5"}, false}, // sonic-1 is a cut vertex
		{topology.Pair{A: "sonic-3", Z: "sonic-6"}, false}, // sonic-4 is a cut vertex
	}

	for _, tt := range tests {
		if got := topo.HasDisjointPaths(tt.pair); got != tt.want {
			t.Errorf("HasDisjointPaths(%s) = %v, want %v", tt.pair, got, tt.want)
		}
	}
}

// Declared redundant pairs must survive the removal of any single link.
func TestSingleLinkRemoval_PairStaysReachable(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	pair := topology.Pair{A: "sonic-1", Z: "sonic-4"}

	for _, l := range topo.Links {
		exclude := map[string]bool{l.Key(): true}
		if !topo.PathExistsWithout(pair, exclude) {
			t.Errorf("removing link %s disconnects redundant pair %s", l.Key(), pair)
		}
	}
}

func TestPathExistsWithout_BothPathsCut(t *testing.T) {
	topo := testutil.DiamondTopology(t)
	pair := topology.Pair{A: "sonic-1", Z: "sonic-4"}

	exclude := map[string]bool{
		"sonic-2<->sonic-3": true,
		"sonic-5<->sonic-6": true,
	}
	if topo.PathExistsWithout(pair, exclude) {
		t.Error("cutting one link on each path should disconnect the pair")
	}
}

func TestLinksFor(t *testing.T) {
	topo := testutil.DiamondTopology(t)

	links := topo.LinksFor("sonic-1")
	if len(links) != 2 {
		t.Fatalf("sonic-1 links = %d, want 2", len(links))
	}
	for _, l := range links {
		peer, ok := l.Peer("sonic-1")
		if !ok {
			t.Fatalf("link %s should have sonic-1 as an endpoint", l.Key())
		}
		if peer.Node != "sonic-2" && peer.Node != "sonic-5" {
			t.Errorf("unexpected peer %s for sonic-1", peer.Node)
		}
	}
}
