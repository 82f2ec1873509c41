// Package testutil provides shared fixtures for soniclab package tests.
package testutil

import (
	"testing"

	"github.com/soniclab-network/soniclab/pkg/topology"
)

// DiamondSpecYAML is the canonical six-node dual-path diamond lab:
// sonic-1 .. sonic-6, paths 1-2-3-4 and 1-5-6-4, management addresses
// 172.20.0.11-16, with sonic-1<->sonic-4 declared as a redundant pair.
const DiamondSpecYAML = `
name: sonic-diamond
mgmt_subnet: 172.20.0.0/24
data_ip_mode: static
nodes:
  - id: sonic-1
    mgmt_ip: 172.20.0.11
    ports: {ssh: 2211, rest: 8811, gnmi: 50511, telnet: 9011}
  - id: sonic-2
    mgmt_ip: 172.20.0.12
    ports: {ssh: 2212, rest: 8812, gnmi: 50512, telnet: 9012}
  - id: sonic-3
    mgmt_ip: 172.20.0.13
    ports: {ssh: 2213, rest: 8813, gnmi: 50513, telnet: 9013}
  - id: sonic-4
    mgmt_ip: 172.20.0.14
    ports: {ssh: 2214, rest: 8814, gnmi: 50514, telnet: 9014}
  - id: sonic-5
    mgmt_ip: 172.20.0.15
    ports: {ssh: 2215, rest: 8815, gnmi: 50515, telnet: 9015}
  - id: sonic-6
    mgmt_ip: 172.20.0.16
    ports: {ssh: 2216, rest: 8816, gnmi: 50516, telnet: 9016}
links:
  - {a: sonic-1, z: sonic-2}
  - {a: sonic-2, z: sonic-3}
  - {a: sonic-3, z: sonic-4}
  - {a: sonic-1, z: sonic-5}
  - {a: sonic-5, z: sonic-6}
  - {a: sonic-6, z: sonic-4}
redundant_pairs:
  - {a: sonic-1, z: sonic-4}
`

// DiamondTopology parses and validates the diamond fixture.
func DiamondTopology(t *testing.T) *topology.Topology {
	t.Helper()
	topo, err := topology.Parse([]byte(DiamondSpecYAML))
	if err != nil {
		t.Fatalf("parsing diamond fixture: %v", err)
	}
	return topo
}
