package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/cli"
	"github.com/soniclab-network/soniclab/pkg/runtime"
)

func newDestroyCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Stop and remove the lab",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology()
			if err != nil {
				return err
			}

			rt := &runtime.DockerCompose{}
			if err := rt.Down(cmd.Context(), resolveArtifactDir(outDir)); err != nil {
				return err
			}
			fmt.Printf("%s Destroyed %s\n", cli.Green("✓"), topo.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "artifact output directory")
	return cmd
}
