package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/cli"
	"github.com/soniclab-network/soniclab/pkg/provision"
	"github.com/soniclab-network/soniclab/pkg/runtime"
	"github.com/soniclab-network/soniclab/pkg/topology"
	"github.com/soniclab-network/soniclab/pkg/util"
)

func newDeployCmd() *cobra.Command {
	var outDir string
	var image string
	var skipSetup bool
	var parallel int

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision artifacts, start the lab, and run node setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology()
			if err != nil {
				return err
			}
			dir := resolveArtifactDir(outDir)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			artifacts, err := provision.Render(topo)
			if err != nil {
				return err
			}
			res, err := provision.WriteAll(dir, artifacts)
			if err != nil {
				return err
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d artifacts failed: %w",
					len(res.Failed), len(artifacts), util.ErrProvisionFailed)
			}
			if err := provision.WriteCompose(dir, topo, image); err != nil {
				return err
			}

			rt := &runtime.DockerCompose{}
			fmt.Println("Starting containers...")
			if err := rt.Up(ctx, dir); err != nil {
				return err
			}

			var failed int
			if !skipSetup {
				fmt.Println("Running node setup...")
				failed = runSetup(ctx, rt, topo, parallel)
			}

			fmt.Printf("\n%s Deployed %s (%d nodes)\n\n", cli.Green("✓"), topo.Name, len(topo.Nodes))
			tbl := cli.NewTable("NODE", "MGMT IP", "SSH PORT", "GNMI PORT")
			for _, node := range topo.NodesByIndex() {
				tbl.Row(node.ID, node.MgmtIP.String(),
					fmt.Sprintf("%d", node.Ports.SSH), fmt.Sprintf("%d", node.Ports.GNMI))
			}
			tbl.Flush()

			if failed > 0 {
				return fmt.Errorf("%d setup steps failed: %w", failed, util.ErrProvisionFailed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "artifact output directory")
	cmd.Flags().StringVar(&image, "image", "", "NOS container image")
	cmd.Flags().BoolVar(&skipSetup, "skip-setup", false, "skip in-container setup steps")
	cmd.Flags().IntVar(&parallel, "parallel", 2, "parallel node setup")
	return cmd
}

// runSetup runs the provisioning step sequence on every node with bounded
// parallelism and prints one line per step. Returns the failed step count.
func runSetup(ctx context.Context, rt runtime.Runtime, topo *topology.Topology, parallel int) int {
	if parallel <= 0 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed int

	for _, id := range topo.NodeIDs() {
		wg.Add(1)
		go func(node *topology.Node) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results := provision.RunSteps(ctx, rt, topo, node, provision.DefaultStepOptions)
			mu.Lock()
			defer mu.Unlock()
			for _, r := range results {
				status := cli.Green("ok")
				if r.Err != nil {
					status = cli.Red("failed")
					failed++
				}
				fmt.Printf("  %s %s [%s]\n", cli.DotPad(r.Node+"/"+r.Step, 40), status, attemptsLabel(r.Attempts))
			}
		}(topo.Nodes[id])
	}
	wg.Wait()
	return failed
}

func attemptsLabel(n int) string {
	if n == 1 {
		return "1 attempt"
	}
	return fmt.Sprintf("%d attempts", n)
}
