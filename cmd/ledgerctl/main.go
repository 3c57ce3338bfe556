// Command ledgerctl holds the maintenance tasks of the account ledger:
//
//	ledgerctl migrate
//	ledgerctl usuario --username admin@hospital.local --password cambiar123 --rol administrador
//	ledgerctl hash <password>
//	ledgerctl dlq [--reintentar jobs:comprobante]
//
// Configuration comes from the same environment as the server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/agntsupport/hospitalsystem-sub004/internal/config"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Tareas de mantenimiento del sistema de cuentas de pacientes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCommand(), newUsuarioCommand(), newHashCommand(), newDLQCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	return cfg, db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
