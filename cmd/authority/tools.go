package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	jwtx "github.com/dropDatabas3/authority/internal/jwt"
	"github.com/dropDatabas3/authority/internal/security/password"
	"github.com/dropDatabas3/authority/internal/security/pkce"
)

func newPKCECmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pkce",
		Short: "Genera un par code_verifier / code_challenge (S256)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, c, err := pkce.GeneratePair()
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"code_verifier":         v,
				"code_challenge":        c,
				"code_challenge_method": pkce.MethodS256,
			})
		},
	}
}

func newHashPasswordCmd(_ *globals) *cobra.Command {
	var (
		fromStdin bool
		params    = password.Default
	)
	cmd := &cobra.Command{
		Use:   "hash-password",
		Short: "Imprime el hash argon2id de un password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var plain string
			if fromStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read stdin: %w", err)
				}
				plain = strings.TrimRight(line, "\r\n")
			} else {
				fd := int(os.Stdin.Fd())
				if !term.IsTerminal(fd) {
					return errors.New("no TTY: use --stdin")
				}
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				b, err := term.ReadPassword(fd)
				fmt.Fprintln(cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				plain = string(b)
			}
			hash, err := password.NewHasher(params).Hash(plain)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "Lee el password de la primera línea de stdin")
	cmd.Flags().Uint32Var(&params.Memory, "memory", params.Memory, "Memoria argon2 en KiB")
	cmd.Flags().Uint32Var(&params.Time, "iterations", params.Time, "Iteraciones argon2")
	cmd.Flags().Uint8Var(&params.Parallelism, "parallelism", params.Parallelism, "Paralelismo argon2")
	return cmd
}

func newTokenCmd(g *globals) *cobra.Command {
	tokenCmd := &cobra.Command{Use: "token", Short: "Utilidades sobre tokens emitidos"}

	var kind string
	verifyCmd := &cobra.Command{
		Use:   "verify <jwt>",
		Short: "Verifica firma, expiración y kind de un token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd.Context())
			if err != nil {
				return err
			}
			svc, err := jwtx.NewService(jwtx.Config{
				SigningKey: []byte(cfg.JWT.SigningKey),
				Issuer:     cfg.JWT.Issuer,
				Audience:   cfg.JWT.Audience,
			})
			if err != nil {
				return err
			}
			cl, err := svc.Verify(strings.TrimSpace(args[0]), jwtx.Kind(kind))
			if err != nil {
				return fmt.Errorf("invalid token (%s): %w", jwtx.Reason(err), err)
			}
			out := map[string]any{
				"sub":  cl.Subject,
				"kind": cl.Kind,
				"jti":  cl.ID,
			}
			if cl.ExpiresAt != nil {
				out["expires_at"] = cl.ExpiresAt.Time.UTC().Format(time.RFC3339)
			}
			if cl.Email != "" {
				out["email"] = cl.Email
			}
			if cl.Provider != "" {
				out["provider"] = cl.Provider
			}
			return printJSON(cmd, out)
		},
	}
	verifyCmd.Flags().StringVar(&kind, "kind", string(jwtx.KindAccess), "Kind esperado: access|refresh|auth_code")

	tokenCmd.AddCommand(verifyCmd)
	return tokenCmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
