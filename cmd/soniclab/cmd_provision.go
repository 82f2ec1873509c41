package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/cli"
	"github.com/soniclab-network/soniclab/pkg/provision"
	"github.com/soniclab-network/soniclab/pkg/settings"
	"github.com/soniclab-network/soniclab/pkg/util"
)

func newProvisionCmd() *cobra.Command {
	var outDir string
	var image string

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Render per-node artifacts and the compose file",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology()
			if err != nil {
				return err
			}

			dir := resolveArtifactDir(outDir)
			artifacts, err := provision.Render(topo)
			if err != nil {
				return err
			}

			res, err := provision.WriteAll(dir, artifacts)
			if err != nil {
				return err
			}
			if err := provision.WriteCompose(dir, topo, image); err != nil {
				return err
			}

			tbl := cli.NewTable("NODE", "ARTIFACT", "STATUS")
			for _, id := range res.Written {
				tbl.Row(id, artifacts[id].Filename, cli.Green("written"))
			}
			for _, f := range res.Failed {
				tbl.Row(f.Node, artifacts[f.Node].Filename, cli.Red("failed"))
			}
			tbl.Flush()
			fmt.Printf("\n%s %s -> %s\n", cli.Green("✓"), topo.Name, dir)

			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d artifacts failed: %w",
					len(res.Failed), len(artifacts), util.ErrProvisionFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "artifact output directory")
	cmd.Flags().StringVar(&image, "image", "", "NOS container image")
	return cmd
}

// resolveArtifactDir prefers the flag, then settings, then ./lab.
func resolveArtifactDir(flag string) string {
	if flag != "" {
		return flag
	}
	s, err := settings.Load()
	if err != nil {
		return "lab"
	}
	return s.GetArtifactDir()
}
