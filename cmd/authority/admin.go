package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dropDatabas3/authority/internal/bootstrap"
	"github.com/dropDatabas3/authority/internal/config"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/store"
)

func newAdminCmd(g *globals) *cobra.Command {
	adminCmd := &cobra.Command{Use: "admin", Short: "Operaciones sobre administradores"}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Crea el usuario admin (interactivo si no hay BOOTSTRAP_ADMIN_*)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, ctx, err := g.load(cmd.Context())
			if err != nil {
				return err
			}
			ac := bootstrap.AdminConfig{Email: cfg.Bootstrap.AdminEmail, Password: cfg.Bootstrap.AdminPassword}
			if ac.Email == "" {
				fd := int(os.Stdin.Fd())
				if !term.IsTerminal(fd) {
					return errors.New("no TTY: set BOOTSTRAP_ADMIN_EMAIL and BOOTSTRAP_ADMIN_PASSWORD")
				}
				ac, err = bootstrap.PromptAdmin(cmd.InOrStdin(), cmd.OutOrStdout(), func() ([]byte, error) {
					return term.ReadPassword(fd)
				})
				if err != nil {
					return err
				}
			}

			h, err := store.Open(ctx, store.Config{
				Driver:   cfg.Storage.Driver,
				DSN:      cfg.Storage.DSN,
				Postgres: store.PostgresOptions(1, 1, cfg.Storage.Postgres.ConnMaxLifetime),
			})
			if err != nil {
				return err
			}
			defer h.Close()
			if h.Memory != nil {
				return errors.New("admin create needs a persistent store (storage.driver=postgres)")
			}
			admins, ok := h.Users.(bootstrap.AdminStore)
			if !ok {
				return errors.New("store does not support admin bootstrap")
			}

			created, err := bootstrap.EnsureAdmin(ctx, admins, hasherFrom(cfg), ac)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created\n", ac.Email)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s already exists\n", ac.Email)
			}
			return nil
		},
	}
	adminCmd.AddCommand(createCmd)
	return adminCmd
}

func hasherFrom(cfg *config.Config) *password.Hasher {
	return password.NewHasher(password.Params{
		Memory:      cfg.Password.Argon2.Memory,
		Time:        cfg.Password.Argon2.Iterations,
		Parallelism: cfg.Password.Argon2.Parallelism,
	})
}
