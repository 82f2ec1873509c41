// Package provision renders per-node configuration artifacts and the lab
// compose file from a validated topology, and drives the ordered
// provisioning steps against the container runtime.
package provision

import (
	"encoding/json"
	"fmt"
	"sort"

	"inet.af/netaddr"

	"github.com/soniclab-network/soniclab/pkg/topology"
)

// Artifact is one rendered configuration file for a node. The container
// runtime mounts it; its content is opaque to everything downstream.
type Artifact struct {
	Node     string
	Filename string
	Data     []byte
}

// SONiC CONFIG_DB table fragments. Only the tables the lab needs: identity,
// management addressing, ports, and (in static mode) data-link addresses.
type configDB struct {
	DeviceMetadata map[string]deviceMetadata `json:"DEVICE_METADATA"`
	MgmtInterface  map[string]mgmtInterface  `json:"MGMT_INTERFACE"`
	Port           map[string]portEntry      `json:"PORT"`
	Interface      map[string]struct{}       `json:"INTERFACE,omitempty"`
}

type deviceMetadata struct {
	Hostname string `json:"hostname"`
	HWSKU    string `json:"hwsku"`
	Platform string `json:"platform"`
	Type     string `json:"type"`
	MAC      string `json:"mac"`
}

type mgmtInterface struct {
	GWAddr string `json:"gwaddr"`
}

type portEntry struct {
	Alias       string `json:"alias"`
	Lanes       string `json:"lanes"`
	Speed       string `json:"speed"`
	AdminStatus string `json:"admin_status"`
}

const (
	labHWSKU    = "Force10-S6000"
	labPlatform = "x86_64-kvm_x86_64-r0"
	portSpeed   = "100000"
	// Interface naming uses the SONiC stride-4 convention: the k-th data
	// link on a node maps to Ethernet(4k).
	ifaceStride = 4
)

// nodeMAC derives a deterministic locally-administered MAC from the node
// index (02: prefix sets the IEEE LAA bit).
func nodeMAC(index int) string {
	return fmt.Sprintf("02:42:ac:14:%02x:%02x", (index>>8)&0xff, index&0xff)
}

// InterfaceName returns the SONiC interface assigned to the node's k-th
// link, ordered by link subnet.
func InterfaceName(k int) string {
	return fmt.Sprintf("Ethernet%d", k*ifaceStride)
}

// NodeInterfaces returns the node's data interfaces in deterministic order:
// (interface name, link) pairs sorted by link subnet.
func NodeInterfaces(topo *topology.Topology, nodeID string) []NodeInterface {
	links := topo.LinksFor(nodeID)
	sort.Slice(links, func(i, j int) bool {
		return links[i].Subnet.String() < links[j].Subnet.String()
	})

	out := make([]NodeInterface, 0, len(links))
	for k, l := range links {
		ep := l.A
		if ep.Node != nodeID {
			ep = l.Z
		}
		out = append(out, NodeInterface{
			Name: InterfaceName(k),
			Link: l,
			Addr: ep.Addr,
		})
	}
	return out
}

// NodeInterface pairs a SONiC interface name with its link assignment.
type NodeInterface struct {
	Name string
	Link *topology.Link
	Addr netaddr.IPPrefix
}

// renderConfigDB builds the config_db.json artifact for one node. Pure
// function of the topology; map keys are emitted sorted by encoding/json,
// so output is byte-identical across calls.
func renderConfigDB(topo *topology.Topology, node *topology.Node) (*Artifact, error) {
	db := configDB{
		DeviceMetadata: map[string]deviceMetadata{
			"localhost": {
				Hostname: node.ID,
				HWSKU:    labHWSKU,
				Platform: labPlatform,
				Type:     "LeafRouter",
				MAC:      nodeMAC(node.Index),
			},
		},
		MgmtInterface: map[string]mgmtInterface{
			fmt.Sprintf("eth0|%s/%d", node.MgmtIP, topo.MgmtSubnet.Bits): {
				GWAddr: mgmtGateway(topo),
			},
		},
		Port: make(map[string]portEntry),
	}

	ifaces := NodeInterfaces(topo, node.ID)
	for k, ni := range ifaces {
		db.Port[ni.Name] = portEntry{
			Alias:       fmt.Sprintf("fortyGigE0/%d", k*ifaceStride),
			Lanes:       fmt.Sprintf("%d,%d,%d,%d", k*4+1, k*4+2, k*4+3, k*4+4),
			Speed:       portSpeed,
			AdminStatus: "up",
		}
	}

	if topo.DataIPMode == topology.DataIPStatic && len(ifaces) > 0 {
		db.Interface = make(map[string]struct{})
		for _, ni := range ifaces {
			db.Interface[ni.Name] = struct{}{}
			db.Interface[fmt.Sprintf("%s|%s", ni.Name, ni.Addr)] = struct{}{}
		}
	}

	data, err := json.MarshalIndent(&db, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("provision: marshal config_db for %s: %w", node.ID, err)
	}
	data = append(data, '\n')

	return &Artifact{
		Node:     node.ID,
		Filename: fmt.Sprintf("%s/config_db.json", node.ID),
		Data:     data,
	}, nil
}

// mgmtGateway is the .1 address of the management subnet.
func mgmtGateway(topo *topology.Topology) string {
	ip := topo.MgmtSubnet.Masked().IP.As4()
	ip[3] = 1
	return fmt.Sprintf("%d.%d.%d.%d", ip[0], ip[1], ip[2], ip[3])
}
