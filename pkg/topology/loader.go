package topology

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"inet.af/netaddr"

	"github.com/soniclab-network/soniclab/pkg/util"
)

// DefaultMgmtSubnet is used when the spec omits mgmt_subnet.
const DefaultMgmtSubnet = "172.20.0.0/24"

// SpecFile is the on-disk topology declaration (topology.yaml).
type SpecFile struct {
	Name           string      `yaml:"name"`
	MgmtSubnet     string      `yaml:"mgmt_subnet,omitempty"`
	DataIPMode     string      `yaml:"data_ip_mode,omitempty"`
	Nodes          []*SpecNode `yaml:"nodes"`
	Links          []*SpecLink `yaml:"links"`
	RedundantPairs []Pair      `yaml:"redundant_pairs,omitempty"`
}

// SpecNode declares a single node. Index is assigned from list position.
type SpecNode struct {
	ID     string       `yaml:"id"`
	MgmtIP string       `yaml:"mgmt_ip"`
	Ports  ServicePorts `yaml:"ports"`
}

// SpecLink declares an unordered node pair; addressing is derived.
type SpecLink struct {
	A string `yaml:"a"`
	Z string `yaml:"z"`
}

// Load reads and validates a topology spec file. On any violated invariant
// it returns a *util.ValidationError and no topology; it never partially
// succeeds and has no side effects.
func Load(path string) (*Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("topology: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a topology spec from raw YAML.
func Parse(data []byte) (*Topology, error) {
	var spec SpecFile
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("topology: parse spec: %w", err)
	}
	return build(&spec)
}

// build converts a parsed spec into a validated Topology.
func build(spec *SpecFile) (*Topology, error) {
	v := &util.ValidationBuilder{}

	mgmtSubnetStr := spec.MgmtSubnet
	if mgmtSubnetStr == "" {
		mgmtSubnetStr = DefaultMgmtSubnet
	}
	mgmtSubnet, err := netaddr.ParseIPPrefix(mgmtSubnetStr)
	if err != nil {
		v.AddErrorf("invalid mgmt_subnet '%s'", mgmtSubnetStr)
	}

	mode := spec.DataIPMode
	if mode == "" {
		mode = DataIPStatic
	}
	if mode != DataIPStatic && mode != DataIPManaged {
		v.AddErrorf("invalid data_ip_mode '%s' (want '%s' or '%s')", mode, DataIPStatic, DataIPManaged)
	}

	if len(spec.Nodes) == 0 {
		v.AddError("topology declares no nodes")
	}

	t := &Topology{
		Name:           spec.Name,
		MgmtSubnet:     mgmtSubnet,
		DataIPMode:     mode,
		Nodes:          make(map[string]*Node, len(spec.Nodes)),
		RedundantPairs: spec.RedundantPairs,
	}

	// Nodes: unique IDs, unique in-subnet mgmt IPs, unique service ports
	// across the whole process.
	seenMgmt := make(map[netaddr.IP]string)
	seenPorts := make(map[int]string)
	for i, sn := range spec.Nodes {
		idx := i + 1
		if sn.ID == "" {
			v.AddErrorf("node[%d]: missing id", i)
			continue
		}
		if _, dup := t.Nodes[sn.ID]; dup {
			v.AddErrorf("duplicate node id '%s'", sn.ID)
			continue
		}
		if idx > maxNodeIndex {
			v.AddErrorf("node '%s': index %d exceeds maximum %d", sn.ID, idx, maxNodeIndex)
			continue
		}

		ip, err := netaddr.ParseIP(sn.MgmtIP)
		if err != nil || !ip.Is4() {
			v.AddErrorf("node '%s': invalid management IP '%s'", sn.ID, sn.MgmtIP)
			continue
		}
		if owner, dup := seenMgmt[ip]; dup {
			v.AddErrorf("duplicate management IP %s on nodes '%s' and '%s'", ip, owner, sn.ID)
		}
		seenMgmt[ip] = sn.ID
		if mgmtSubnet.Valid() && !mgmtSubnet.Contains(ip) {
			v.AddErrorf("node '%s': management IP %s outside subnet %s", sn.ID, ip, mgmtSubnet)
		}

		for _, sp := range sn.Ports.All() {
			if err := util.ValidatePort(sp.Port); err != nil {
				v.AddErrorf("node '%s': %s port: %v", sn.ID, sp.Service, err)
				continue
			}
			if owner, dup := seenPorts[sp.Port]; dup {
				v.AddErrorf("node '%s': %s port %d already used by %s", sn.ID, sp.Service, sp.Port, owner)
			}
			seenPorts[sp.Port] = fmt.Sprintf("%s/%s", sn.ID, sp.Service)
		}

		t.Nodes[sn.ID] = &Node{ID: sn.ID, Index: idx, MgmtIP: ip, Ports: sn.Ports}
	}

	// Links: known distinct endpoints, derived subnets unique, per-node
	// interface addresses unique.
	seenSubnet := make(map[netaddr.IPPrefix]string)
	seenPair := make(map[string]bool)
	seenAddr := make(map[netaddr.IP]string)
	for i, sl := range spec.Links {
		a, aOK := t.Nodes[sl.A]
		z, zOK := t.Nodes[sl.Z]
		if !aOK {
			v.AddErrorf("link[%d]: unknown node '%s'", i, sl.A)
		}
		if !zOK {
			v.AddErrorf("link[%d]: unknown node '%s'", i, sl.Z)
		}
		if !aOK || !zOK {
			continue
		}
		if a.ID == z.ID {
			v.AddErrorf("link[%d]: self-link on node '%s'", i, a.ID)
			continue
		}

		link, err := deriveLink(a, z)
		if err != nil {
			v.AddErrorf("link[%d]: %v", i, err)
			continue
		}
		if seenPair[link.Key()] {
			v.AddErrorf("duplicate link %s", link.Key())
			continue
		}
		seenPair[link.Key()] = true
		if owner, dup := seenSubnet[link.Subnet]; dup {
			v.AddErrorf("link %s: derived subnet %s already assigned to %s", link.Key(), link.Subnet, owner)
		}
		seenSubnet[link.Subnet] = link.Key()

		for _, ep := range []Endpoint{link.A, link.Z} {
			if owner, dup := seenAddr[ep.Addr.IP]; dup {
				v.AddErrorf("node '%s': interface address %s already assigned to %s", ep.Node, ep.Addr.IP, owner)
			}
			seenAddr[ep.Addr.IP] = link.Key()
		}

		t.Links = append(t.Links, link)
	}

	// Redundant pairs must name known nodes.
	for _, p := range t.RedundantPairs {
		if _, ok := t.Nodes[p.A]; !ok {
			v.AddErrorf("redundant pair %s: unknown node '%s'", p, p.A)
		}
		if _, ok := t.Nodes[p.Z]; !ok {
			v.AddErrorf("redundant pair %s: unknown node '%s'", p, p.Z)
		}
	}

	// Graph invariants only make sense on an otherwise-valid spec.
	if v.HasErrors() {
		return nil, v.Build()
	}

	if !t.Connected() {
		v.AddError("topology graph is not connected")
	}
	for _, p := range t.RedundantPairs {
		if !t.HasDisjointPaths(p) {
			v.AddErrorf("redundant pair %s lacks two vertex-disjoint paths", p)
		}
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	return t, nil
}
