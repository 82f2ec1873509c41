package topology

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// labGraph is the topology's undirected graph view, used for the
// connectivity and redundant-path invariants. Node IDs are mapped to dense
// int64s in sorted order so the mapping is deterministic.
type labGraph struct {
	g     *simple.UndirectedGraph
	index map[string]int64
}

// newLabGraph builds a graph over the given node IDs and links, skipping
// any link in the exclude set (keyed by Link.Key).
func newLabGraph(nodeIDs []string, links []*Link, exclude map[string]bool) *labGraph {
	sorted := append([]string(nil), nodeIDs...)
	sort.Strings(sorted)

	lg := &labGraph{
		g:     simple.NewUndirectedGraph(),
		index: make(map[string]int64, len(sorted)),
	}
	for i, id := range sorted {
		lg.index[id] = int64(i)
		lg.g.AddNode(simple.Node(int64(i)))
	}
	for _, l := range links {
		if exclude[l.Key()] {
			continue
		}
		a, aOK := lg.index[l.A.Node]
		z, zOK := lg.index[l.Z.Node]
		if !aOK || !zOK || a == z {
			continue
		}
		lg.g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(z)})
	}
	return lg
}

// connected reports whether the whole graph is one component.
func (lg *labGraph) connected() bool {
	if len(lg.index) == 0 {
		return false
	}
	return len(topo.ConnectedComponents(lg.g)) == 1
}

// pathExists reports whether any path joins a and z.
func (lg *labGraph) pathExists(a, z string) bool {
	ai, aOK := lg.index[a]
	zi, zOK := lg.index[z]
	if !aOK || !zOK {
		return false
	}
	if ai == zi {
		return true
	}
	return topo.PathExistsIn(lg.g, simple.Node(ai), simple.Node(zi))
}

// Connected reports whether the topology graph is a single component.
func (t *Topology) Connected() bool {
	return newLabGraph(t.NodeIDs(), t.Links, nil).connected()
}

// PathExistsWithout reports whether a path joins pair.A and pair.Z after
// removing the links named in exclude (Link.Key values). Used both by the
// redundancy invariant and by single-link-failure analysis in the report.
func (t *Topology) PathExistsWithout(pair Pair, exclude map[string]bool) bool {
	return newLabGraph(t.NodeIDs(), t.Links, exclude).pathExists(pair.A, pair.Z)
}

// HasDisjointPaths reports whether at least two vertex-disjoint paths join
// pair.A and pair.Z. By Menger's theorem this holds exactly when no single
// intermediate node separates the pair; an adjacent pair additionally needs
// a path that survives removal of the direct link.
func (t *Topology) HasDisjointPaths(pair Pair) bool {
	ids := t.NodeIDs()
	full := newLabGraph(ids, t.Links, nil)
	if !full.pathExists(pair.A, pair.Z) {
		return false
	}

	// Direct link: the second path must avoid it entirely.
	for _, l := range t.Links {
		if (l.A.Node == pair.A && l.Z.Node == pair.Z) || (l.A.Node == pair.Z && l.Z.Node == pair.A) {
			return t.PathExistsWithout(pair, map[string]bool{l.Key(): true})
		}
	}

	// Non-adjacent: removing any single intermediate node must not
	// disconnect the pair.
	for _, id := range ids {
		if id == pair.A || id == pair.Z {
			continue
		}
		if !pathExistsWithoutNode(ids, t.Links, id, pair) {
			return false
		}
	}
	return true
}

// pathExistsWithoutNode checks pair connectivity on the graph with one node
// (and its incident links) removed.
func pathExistsWithoutNode(ids []string, links []*Link, removed string, pair Pair) bool {
	kept := make([]string, 0, len(ids)-1)
	for _, id := range ids {
		if id != removed {
			kept = append(kept, id)
		}
	}
	var keptLinks []*Link
	for _, l := range links {
		if l.A.Node != removed && l.Z.Node != removed {
			keptLinks = append(keptLinks, l)
		}
	}
	return newLabGraph(kept, keptLinks, nil).pathExists(pair.A, pair.Z)
}
