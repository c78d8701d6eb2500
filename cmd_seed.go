package main

import (
	"fmt"
	"os"

	"github.com/mbolis/caps-forms/app"
	"github.com/mbolis/caps-forms/config"
	"github.com/mbolis/caps-forms/database"
	"github.com/mbolis/caps-forms/forms"
	"github.com/mbolis/caps-forms/identity"
	"github.com/mbolis/caps-forms/log"
	"github.com/spf13/cobra"
)

func seedCmd(cfg *config.Config) *cobra.Command {
	var publish bool
	var as string

	cmd := &cobra.Command{
		Use:   "seed <definition.yaml>",
		Short: "Create a schema from a YAML form definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			def, err := forms.LoadDefinition(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			db, err := database.Open(cfg.DBUrl)
			if err != nil {
				return err
			}
			defer db.Close()

			a := app.New(db, *cfg)
			ctx := identity.With(cmd.Context(), identity.Identity{User: as})

			draft, err := a.Apply(ctx, def)
			if err != nil {
				return err
			}
			log.WithFields(log.Fields{"schema": draft.SchemaID, "title": draft.Title}).Info("schema seeded")

			if publish {
				rev, err := a.PublishRevision(ctx, draft.SchemaID)
				if err != nil {
					return err
				}
				log.WithFields(log.Fields{"schema": rev.ID, "revision": rev.Revision}).Info("revision published")
			}

			fmt.Fprintln(cmd.OutOrStdout(), draft.SchemaID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "publish the draft as revision 1")
	cmd.Flags().StringVar(&as, "as", "seed", "identity recorded as the editor")
	return cmd
}
