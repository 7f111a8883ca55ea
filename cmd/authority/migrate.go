package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/authority/internal/store/pg"
	migrations "github.com/dropDatabas3/authority/migrations/postgres"
)

func newMigrateCmd(g *globals) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate [up|down] [steps]",
		Short: "Aplica las migraciones de postgres embebidas",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, steps := "up", 0
			if len(args) >= 1 {
				action = strings.ToLower(args[0])
			}
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil || n < 0 {
					return fmt.Errorf("steps must be a non-negative integer, got %q", args[1])
				}
				steps = n
			}

			if dryRun {
				files, err := pg.Plan(migrations.FS, action, steps)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(cmd.OutOrStdout(), f)
				}
				return nil
			}

			cfg, ctx, err := g.load(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return errors.New("migrate requires storage.driver=postgres")
			}
			applied, err := pg.Migrate(ctx, cfg.Storage.DSN, migrations.FS, action, steps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d migration(s) applied\n", len(applied))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Solo lista los archivos que se aplicarían")
	return cmd
}
