package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soniclab-network/soniclab/pkg/report"
	"github.com/soniclab-network/soniclab/pkg/settings"
	"github.com/soniclab-network/soniclab/pkg/util"
)

func newReportCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the last recorded verification run",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := settings.Load()
			if err != nil {
				s = &settings.Settings{}
			}
			h, err := report.OpenHistory(s.GetHistoryPath())
			if err != nil {
				return err
			}
			defer h.Close()

			rep, err := h.Last(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOut {
				return report.WriteJSON(os.Stdout, rep)
			}
			report.WriteText(os.Stdout, rep)

			if !rep.OK {
				return fmt.Errorf("last run was degraded: %w", util.ErrProbeFailed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit JSON instead of tables")
	return cmd
}
