package main

import (
	"fmt"

	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)
			if err := infra.RunMigrations(db); err != nil {
				return fmt.Errorf("migraciones: %w", err)
			}
			log.Info().Msg("migraciones aplicadas")
			return nil
		},
	}
}
