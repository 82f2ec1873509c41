// Package report aggregates verification results into deterministic
// pass/fail summaries and keeps a history of past runs.
package report

import (
	"sort"
	"time"

	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
	"github.com/soniclab-network/soniclab/pkg/verify"
)

// PairStatus is the redundancy verdict for one declared node pair.
// PathsIntact is false only when every path between the two nodes is broken;
// a single failed link on a dual-path pair leaves it true.
type PairStatus struct {
	Pair        string `json:"pair"`
	PathsIntact bool   `json:"paths_intact"`
}

// Report is the aggregated outcome of one verification run. Ordering is
// deterministic: nodes, then links, both sorted by identifier.
type Report struct {
	Topology       string          `json:"topology"`
	Timestamp      time.Time       `json:"timestamp"`
	NodesReachable int             `json:"nodes_reachable"`
	NodesTotal     int             `json:"nodes_total"`
	LinksReachable int             `json:"links_reachable"`
	LinksTotal     int             `json:"links_total"`
	Pairs          []PairStatus    `json:"pairs,omitempty"`
	Results        []verify.Result `json:"results"`
	OK             bool            `json:"ok"`
}

// Summarize aggregates a run's results against its topology. An empty
// result set violates the aggregation contract and is fatal.
func Summarize(topo *topology.Topology, results []verify.Result) (*Report, error) {
	if len(results) == 0 {
		return nil, &util.ReportError{Reason: "empty result set"}
	}

	sorted := make([]verify.Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind == verify.KindNode
		}
		return sorted[i].Target < sorted[j].Target
	})

	rep := &Report{
		Topology:  topo.Name,
		Timestamp: time.Now().UTC(),
		Results:   sorted,
	}

	nodeDown := make(map[string]bool)
	linkDown := make(map[string]bool)
	for _, r := range sorted {
		switch r.Kind {
		case verify.KindNode:
			rep.NodesTotal++
			if r.Reachable() {
				rep.NodesReachable++
			} else {
				nodeDown[r.Target] = true
			}
		case verify.KindLink:
			rep.LinksTotal++
			if r.Reachable() {
				rep.LinksReachable++
			} else {
				linkDown[r.Target] = true
			}
		}
	}

	// A link is broken for path purposes when its own probe failed or
	// either endpoint node is down.
	broken := make(map[string]bool)
	for _, l := range topo.Links {
		if linkDown[l.Key()] || nodeDown[l.A.Node] || nodeDown[l.Z.Node] {
			broken[l.Key()] = true
		}
	}

	for _, pair := range topo.RedundantPairs {
		rep.Pairs = append(rep.Pairs, PairStatus{
			Pair:        pair.String(),
			PathsIntact: !nodeDown[pair.A] && !nodeDown[pair.Z] && topo.PathExistsWithout(pair, broken),
		})
	}
	sort.Slice(rep.Pairs, func(i, j int) bool { return rep.Pairs[i].Pair < rep.Pairs[j].Pair })

	rep.OK = rep.NodesReachable == rep.NodesTotal && rep.LinksReachable == rep.LinksTotal
	for _, p := range rep.Pairs {
		if !p.PathsIntact {
			rep.OK = false
		}
	}
	return rep, nil
}
