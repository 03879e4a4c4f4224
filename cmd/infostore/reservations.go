package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"infostore/internal/jobs"
	"infostore/internal/repository/postgres/infostore"
)

var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "filename reservation commands",
}

func init() {
	reservationsCmd.AddCommand(sweepCmd())
}

func sweepCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "sweep",
		Short: "Remove reservations older than RESERVATION_TTL",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			sweeper := jobs.NewReservationSweeper(
				infostore.NewReservationRepository(rt.repoConfig()),
				rt.cfg.JanitorSchedule,
				rt.cfg.ReservationTTL,
				rt.logger,
			)
			removed, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired reservations\n", removed)
			return nil
		},
	}

	return command
}
