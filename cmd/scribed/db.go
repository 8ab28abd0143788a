package main

import (
	"fmt"

	"github.com/snipnote/scribed/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to scribed config file")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string) error {
	a, err := loadApp(configPath)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(a.gdb); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Migrated %d tables (%s)\n", len(db.AllModels()), a.cfg.DB.Driver)
	return nil
}
