package provision

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/soniclab-network/soniclab/pkg/topology"
)

// Compose file structures. Only the subset of the compose schema the lab
// uses; yaml.v3 emits map keys sorted, keeping the artifact reproducible.
type composeFile struct {
	Name     string                     `yaml:"name"`
	Services map[string]*composeService `yaml:"services"`
	Networks map[string]*composeNetwork `yaml:"networks"`
}

type composeService struct {
	Image         string                            `yaml:"image"`
	ContainerName string                            `yaml:"container_name"`
	Privileged    bool                              `yaml:"privileged"`
	Volumes       []string                          `yaml:"volumes"`
	Ports         []string                          `yaml:"ports"`
	Networks      map[string]*composeServiceNetwork `yaml:"networks"`
}

type composeServiceNetwork struct {
	IPv4Address string `yaml:"ipv4_address"`
}

type composeNetwork struct {
	Driver string      `yaml:"driver"`
	IPAM   composeIPAM `yaml:"ipam"`
}

type composeIPAM struct {
	Config []composeIPAMConfig `yaml:"config"`
}

type composeIPAMConfig struct {
	Subnet string `yaml:"subnet"`
}

// DefaultImage is the NOS container image used when none is configured.
const DefaultImage = "docker-sonic-vs:latest"

const (
	mgmtNetwork = "mgmt"
	// In-container service ports behind the published host ports.
	containerSSH    = 22
	containerREST   = 8080
	containerGNMI   = 50051
	containerTelnet = 23
)

// linkNetworkName returns the compose network name for a link, e.g.
// "link_1_2" for the sonic-1<->sonic-2 subnet (matches the lab convention).
func linkNetworkName(l *topology.Link) string {
	a := l.Subnet.IP.As4()
	return fmt.Sprintf("link_%d_%d", a[1], a[2])
}

// RenderCompose builds the docker-compose.yaml artifact. Pure function of
// the topology and image; repeated calls yield byte-identical output.
func RenderCompose(topo *topology.Topology, image string) (*Artifact, error) {
	if image == "" {
		image = DefaultImage
	}

	cf := &composeFile{
		Name:     topo.Name,
		Services: make(map[string]*composeService, len(topo.Nodes)),
		Networks: map[string]*composeNetwork{
			mgmtNetwork: {
				Driver: "bridge",
				IPAM:   composeIPAM{Config: []composeIPAMConfig{{Subnet: topo.MgmtSubnet.String()}}},
			},
		},
	}

	for _, l := range topo.Links {
		cf.Networks[linkNetworkName(l)] = &composeNetwork{
			Driver: "bridge",
			IPAM:   composeIPAM{Config: []composeIPAMConfig{{Subnet: l.Subnet.String()}}},
		}
	}

	for _, node := range topo.NodesByIndex() {
		svc := &composeService{
			Image:         image,
			ContainerName: node.ID,
			Privileged:    true,
			Volumes: []string{
				fmt.Sprintf("./%s/config_db.json:/etc/sonic/config_db.json", node.ID),
			},
			Ports: []string{
				fmt.Sprintf("%d:%d", node.Ports.SSH, containerSSH),
				fmt.Sprintf("%d:%d", node.Ports.REST, containerREST),
				fmt.Sprintf("%d:%d", node.Ports.GNMI, containerGNMI),
				fmt.Sprintf("%d:%d", node.Ports.Telnet, containerTelnet),
			},
			Networks: map[string]*composeServiceNetwork{
				mgmtNetwork: {IPv4Address: node.MgmtIP.String()},
			},
		}
		for _, ni := range NodeInterfaces(topo, node.ID) {
			svc.Networks[linkNetworkName(ni.Link)] = &composeServiceNetwork{
				IPv4Address: ni.Addr.IP.String(),
			}
		}
		cf.Services[node.ID] = svc
	}

	data, err := yaml.Marshal(cf)
	if err != nil {
		return nil, fmt.Errorf("provision: marshal compose file: %w", err)
	}

	return &Artifact{
		Node:     "",
		Filename: "docker-compose.yaml",
		Data:     data,
	}, nil
}
