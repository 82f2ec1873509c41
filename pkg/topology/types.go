// Package topology loads and validates the declarative lab topology:
// nodes with management addressing and service ports, point-to-point data
// links with deterministically derived subnets, and redundant-path pairs.
package topology

import (
	"fmt"
	"sort"

	"inet.af/netaddr"
)

// ServicePorts holds the host-side TCP ports exposed for a node's
// management services. Port numbers are unique across the whole lab.
type ServicePorts struct {
	SSH    int `yaml:"ssh" json:"ssh"`
	REST   int `yaml:"rest" json:"rest"`
	GNMI   int `yaml:"gnmi" json:"gnmi"`
	Telnet int `yaml:"telnet" json:"telnet"`
}

// All returns the ports as (service, port) pairs in stable order.
func (p ServicePorts) All() []ServicePort {
	return []ServicePort{
		{"ssh", p.SSH},
		{"rest", p.REST},
		{"gnmi", p.GNMI},
		{"telnet", p.Telnet},
	}
}

// ServicePort names a single exposed service port.
type ServicePort struct {
	Service string
	Port    int
}

// Node is a single NOS container in the lab. Created at load time,
// immutable thereafter.
type Node struct {
	ID     string
	Index  int // 1-based position in the spec; drives derived addressing
	MgmtIP netaddr.IP
	Ports  ServicePorts
}

// Endpoint is one end of a data link: the node and its derived address
// within the link subnet.
type Endpoint struct {
	Node string
	Addr netaddr.IPPrefix
}

// Link is an unordered pair of nodes with a derived point-to-point subnet.
// A is always the lower-indexed node.
type Link struct {
	A      Endpoint
	Z      Endpoint
	Subnet netaddr.IPPrefix
}

// Key returns the canonical "a<->z" identifier for the link.
func (l *Link) Key() string {
	return fmt.Sprintf("%s<->%s", l.A.Node, l.Z.Node)
}

// Pair names two nodes that must stay mutually reachable through at least
// two vertex-disjoint paths (e.g. the ends of the dual-path diamond).
type Pair struct {
	A string `yaml:"a" json:"a"`
	Z string `yaml:"z" json:"z"`
}

func (p Pair) String() string {
	return p.A + "<->" + p.Z
}

// DataIPMode selects whether derived link addresses are pushed as static
// interface IPs or left to the NOS's own interface management.
const (
	DataIPStatic  = "static"
	DataIPManaged = "managed"
)

// Topology is the validated in-memory lab graph. Load is the only
// constructor; a Topology in hand always satisfies the declared invariants.
type Topology struct {
	Name           string
	MgmtSubnet     netaddr.IPPrefix
	DataIPMode     string
	Nodes          map[string]*Node
	Links          []*Link
	RedundantPairs []Pair
}

// NodeIDs returns node identifiers in sorted order.
func (t *Topology) NodeIDs() []string {
	ids := make([]string, 0, len(t.Nodes))
	for id := range t.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NodesByIndex returns nodes ordered by their spec index.
func (t *Topology) NodesByIndex() []*Node {
	nodes := make([]*Node, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Index < nodes[j].Index })
	return nodes
}

// LinksFor returns the links that touch the given node.
func (t *Topology) LinksFor(nodeID string) []*Link {
	var links []*Link
	for _, l := range t.Links {
		if l.A.Node == nodeID || l.Z.Node == nodeID {
			links = append(links, l)
		}
	}
	return links
}

// Peer returns the far-end endpoint of a link relative to nodeID.
func (l *Link) Peer(nodeID string) (Endpoint, bool) {
	switch nodeID {
	case l.A.Node:
		return l.Z, true
	case l.Z.Node:
		return l.A, true
	}
	return Endpoint{}, false
}
