package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/report"
	"github.com/soniclab-network/soniclab/pkg/runtime"
	"github.com/soniclab-network/soniclab/pkg/settings"
	"github.com/soniclab-network/soniclab/pkg/util"
	"github.com/soniclab-network/soniclab/pkg/verify"
)

func newVerifyCmd() *cobra.Command {
	var (
		parallel  int
		attempts  int
		timeout   time.Duration
		probeSSH  bool
		probeDB   bool
		sshUser   string
		sshPass   string
		jsonOut   bool
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Probe node and link reachability and emit a report",
		Long: `Verify walks every node through the reachability state machine
(management TCP ports, optionally SSH login and CONFIG_DB ping), then
fans out data-link checks between the containers.

Exit code 0 means everything answered; 1 means the lab is degraded and
the report shows where.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			probers := []verify.Prober{
				&verify.PortProber{Host: "127.0.0.1", Timeout: 5 * time.Second},
			}
			if probeSSH {
				probers = append(probers, &verify.SSHProber{
					Host: "127.0.0.1", User: sshUser, Password: sshPass,
					Timeout: 5 * time.Second,
				})
			}
			if probeDB {
				probers = append(probers, &verify.RedisProber{Timeout: 5 * time.Second})
			}

			v := verify.New(&runtime.DockerCompose{}, probers, verify.Options{
				Parallel: parallel,
				Attempts: attempts,
				Timeout:  timeout,
			})
			results := v.Run(ctx, topo)

			rep, err := report.Summarize(topo, results)
			if err != nil {
				return err
			}

			if jsonOut {
				if err := report.WriteJSON(os.Stdout, rep); err != nil {
					return err
				}
			} else {
				report.WriteText(os.Stdout, rep)
			}

			if !noHistory {
				if err := saveHistory(cmd, rep); err != nil {
					util.Warnf("recording run history: %v", err)
				}
			}

			if !rep.OK {
				return fmt.Errorf("lab degraded: %d/%d nodes, %d/%d links reachable: %w",
					rep.NodesReachable, rep.NodesTotal,
					rep.LinksReachable, rep.LinksTotal, util.ErrProbeFailed)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&parallel, "parallel", 4, "max in-flight probes")
	cmd.Flags().IntVar(&attempts, "attempts", 10, "probe attempts per target")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "per-target probe budget")
	cmd.Flags().BoolVar(&probeSSH, "ssh", false, "also probe SSH login")
	cmd.Flags().BoolVar(&probeDB, "configdb", false, "also ping CONFIG_DB over the mgmt network")
	cmd.Flags().StringVar(&sshUser, "ssh-user", "admin", "SSH probe user")
	cmd.Flags().StringVar(&sshPass, "ssh-pass", "YourPaSsWoRd", "SSH probe password")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit JSON instead of tables")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "skip recording the run")
	return cmd
}

func saveHistory(cmd *cobra.Command, rep *report.Report) error {
	s, err := settings.Load()
	if err != nil {
		s = &settings.Settings{}
	}
	h, err := report.OpenHistory(s.GetHistoryPath())
	if err != nil {
		return err
	}
	defer h.Close()
	_, err = h.Save(cmd.Context(), rep)
	return err
}
