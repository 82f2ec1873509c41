// SonicLab — container-lab orchestration for simulated SONiC topologies
//
// soniclab reads a declarative topology spec, renders per-node CONFIG_DB
// artifacts and a compose file, drives the container runtime, and verifies
// node and link reachability.
//
// Usage:
//
//	soniclab provision -S <spec>     Render per-node artifacts and compose file
//	soniclab deploy -S <spec>        Provision, start containers, run node setup
//	soniclab verify -S <spec>        Probe nodes and links, emit a report
//	soniclab report                  Show the last recorded verification run
//	soniclab status -S <spec>        Show container status
//	soniclab destroy -S <spec>       Stop and remove the lab
//	soniclab ssh <node>              Open an SSH session to a node
//	soniclab scan -S <spec>          Port-scan the management subnet
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/settings"
	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
	"github.com/soniclab-network/soniclab/pkg/version"
)

var (
	specPath string
	verbose  bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// Validation failures are distinguishable from degraded runs.
		if errors.Is(err, util.ErrValidationFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "soniclab",
	Short:             "Container-lab orchestration for simulated SONiC topologies",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `SonicLab stands up a simulated SONiC network lab from a declarative
topology spec: derived point-to-point addressing, per-node CONFIG_DB
artifacts, compose-driven container lifecycle, and reachability
verification with a pass/fail report.

  soniclab deploy -S topology.yaml`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			util.SetLogLevel("debug")
		} else {
			util.SetLogLevel("warn")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&specPath, "specs", "S", "", "topology spec file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		newProvisionCmd(),
		newDeployCmd(),
		newVerifyCmd(),
		newReportCmd(),
		newStatusCmd(),
		newDestroyCmd(),
		newSSHCmd(),
		newScanCmd(),
		newVersionCmd(),
	)
}

// requireSpecPath resolves the spec file from: -S flag > SONICLAB_SPECS env > settings > error.
func requireSpecPath() (string, error) {
	if specPath != "" {
		return specPath, nil
	}
	if v := os.Getenv("SONICLAB_SPECS"); v != "" {
		return v, nil
	}
	if s, err := settings.Load(); err == nil && s.SpecPath != "" {
		return s.SpecPath, nil
	}
	return "", fmt.Errorf("topology spec required: use -S <file> or set SONICLAB_SPECS")
}

// loadTopology resolves and validates the topology spec.
func loadTopology() (*topology.Topology, error) {
	path, err := requireSpecPath()
	if err != nil {
		return nil, err
	}
	return topology.Load(path)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			if version.Version == "dev" {
				fmt.Println("soniclab dev build (use 'make build' for version info)")
			} else {
				fmt.Printf("soniclab %s (%s)\n", version.Version, version.GitCommit)
			}
		},
	}
}
