package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/cli"
	"github.com/soniclab-network/soniclab/pkg/verify"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Port-scan the management subnet",
		Long: `Scan the management subnet with nmap and map responding addresses
back to lab nodes. Diagnostic only; requires nmap on PATH.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			topo, err := loadTopology()
			if err != nil {
				return err
			}

			hosts, err := verify.ScanMgmt(cmd.Context(), topo)
			if err != nil {
				return err
			}
			if len(hosts) == 0 {
				fmt.Println("no hosts answered on the management subnet")
				return nil
			}

			tbl := cli.NewTable("ADDR", "NODE", "PORT", "SERVICE")
			for _, h := range hosts {
				for _, p := range h.Ports {
					tbl.Row(h.Addr, h.Node, fmt.Sprintf("%d", p.Port), p.Service)
				}
			}
			tbl.Flush()
			return nil
		},
	}
}
