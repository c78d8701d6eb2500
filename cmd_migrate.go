package main

import (
	"github.com/mbolis/caps-forms/config"
	"github.com/mbolis/caps-forms/database"
	"github.com/mbolis/caps-forms/log"
	"github.com/spf13/cobra"
)

func migrateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the database schema up to date and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(cfg.DBUrl)
			if err != nil {
				return err
			}
			log.Info("database up to date: " + cfg.DBUrl)
			return db.Close()
		},
	}
}
