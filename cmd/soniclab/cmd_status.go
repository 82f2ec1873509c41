package main

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/cli"
	"github.com/soniclab-network/soniclab/pkg/runtime"
)

func newStatusCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show container status",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology()
			if err != nil {
				return err
			}

			rt := &runtime.DockerCompose{}
			states, err := rt.Status(cmd.Context(), resolveArtifactDir(outDir))
			if err != nil {
				return err
			}

			names := make([]string, 0, len(states))
			for name := range states {
				names = append(names, name)
			}
			sort.Strings(names)

			tbl := cli.NewTable("NODE", "STATE", "MGMT IP")
			for _, name := range names {
				mgmt := ""
				if node, ok := topo.Nodes[name]; ok {
					mgmt = node.MgmtIP.String()
				}
				state := states[name]
				if state == "running" {
					state = cli.Green(state)
				} else {
					state = cli.Yellow(state)
				}
				tbl.Row(name, state, mgmt)
			}
			tbl.Flush()
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "artifact output directory")
	return cmd
}
