package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/tithe/internal/auth"
)

// ─── user ───────────────────────────────────────────────────────────────────

func (a *App) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	add := &cobra.Command{
		Use:   "add EMAIL NAME PASSWORD",
		Short: "Create an account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := auth.NewPasswordAuthenticator(a.store).Register(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created user %s <%s> (%s)\n", user.DisplayName, user.Email, user.ID)
			return nil
		},
	}

	cmd.AddCommand(add)
	return cmd
}

// ─── token ──────────────────────────────────────────────────────────────────

func (a *App) tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token EMAIL PASSWORD",
		Short: "Sign in and print a bearer token for the API",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := auth.NewPasswordAuthenticator(a.store).Authenticate(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			token, err := auth.NewJWTManager(a.cfg.JWTSecret, a.cfg.TokenDuration.Duration).Generate(user)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
}
