package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	nmap "github.com/Ullaakut/nmap/v3"

	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
)

// ScanHost is one responding address on the management subnet.
type ScanHost struct {
	Addr  string     `json:"addr"`
	Node  string     `json:"node,omitempty"` // lab node ID when the address is known
	Ports []ScanPort `json:"ports"`
}

// ScanPort is one open port found on a host.
type ScanPort struct {
	Port    int    `json:"port"`
	Service string `json:"service,omitempty"`
	State   string `json:"state"`
}

// In-container service ports worth probing on the management subnet.
const mgmtPortRange = "22,23,6379,8080,50051"

// ScanMgmt sweeps the management subnet with nmap and maps responding
// addresses back to lab nodes. Requires the nmap binary on PATH; purely
// diagnostic, never part of the verification verdict.
func ScanMgmt(ctx context.Context, topo *topology.Topology) ([]ScanHost, error) {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(topo.MgmtSubnet.String()),
		nmap.WithPorts(mgmtPortRange),
		nmap.WithSkipHostDiscovery(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify: create scanner: %w", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("verify: mgmt scan: %w", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		util.WithOperation("scan").Warnf("nmap warnings: %s", strings.Join(*warnings, "; "))
	}

	byIP := make(map[string]string, len(topo.Nodes))
	for id, n := range topo.Nodes {
		byIP[n.MgmtIP.String()] = id
	}

	var hosts []ScanHost
	for _, h := range result.Hosts {
		if len(h.Addresses) == 0 {
			continue
		}
		addr := h.Addresses[0].Addr
		sh := ScanHost{Addr: addr, Node: byIP[addr]}
		for _, p := range h.Ports {
			if p.State.State != "open" {
				continue
			}
			sh.Ports = append(sh.Ports, ScanPort{
				Port:    int(p.ID),
				Service: p.Service.Name,
				State:   p.State.State,
			})
		}
		if len(sh.Ports) > 0 {
			hosts = append(hosts, sh)
		}
	}

	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Addr < hosts[j].Addr })
	return hosts, nil
}
