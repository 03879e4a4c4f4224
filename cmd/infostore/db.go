package main

import (
	"errors"

	"github.com/spf13/cobra"

	"infostore/internal/repository/postgres/infostore"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "db commands",
}

func init() {
	dbCmd.AddCommand(migrateCmd())
	dbCmd.AddCommand(resetCmd())
}

func migrateCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "migrate",
		Short: "Create the infostore tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if err := infostore.Migrate(cmd.Context(), rt.pool, rt.tables); err != nil {
				return err
			}
			rt.logger.Info("schema migrated", "table_prefix", rt.cfg.TablePrefix)
			return nil
		},
	}

	return command
}

func resetCmd() *cobra.Command {
	var confirmed bool

	command := &cobra.Command{
		Use:   "reset",
		Short: "Drop every infostore table for the configured prefix",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return errors.New("refusing to drop tables without --yes")
			}
			rt, err := newRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.cfg.Environment == "prod" {
				return errors.New("db reset is disabled in prod")
			}
			if err := infostore.DropAll(cmd.Context(), rt.pool, rt.tables); err != nil {
				return err
			}
			rt.logger.Warn("schema dropped", "table_prefix", rt.cfg.TablePrefix)
			return nil
		},
	}
	command.Flags().BoolVar(&confirmed, "yes", false, "confirm dropping all tables")

	return command
}
