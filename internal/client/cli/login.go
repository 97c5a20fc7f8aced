package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newLoginCmd(app *App) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("-e/--email is required")
			}

			cmd.Print("Password: ")
			password, err := term.ReadPassword(int(syscall.Stdin))
			cmd.Println()
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			payload, err := json.Marshal(map[string]string{
				"email":    email,
				"password": string(password),
			})
			if err != nil {
				return err
			}

			// Login goes straight to the transport: auth must not queue
			// and has no cache to fall back on.
			body, err := app.Client.Post(cmd.Context(), "/auth/login", payload)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}

			token, err := extractToken(body)
			if err != nil {
				return err
			}
			app.Client.Authorize(token)
			if err := app.saveSession(token); err != nil {
				return fmt.Errorf("failed to persist session: %w", err)
			}

			cmd.Println("Signed in.")

			// Warm the cache right away so the first offline stretch
			// already has data.
			if err := app.Engine.SyncAll(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "initial sync incomplete: %v\n", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func extractToken(body []byte) (string, error) {
	obj, err := api.DecodeObject(body)
	if err != nil || obj == nil {
		return "", fmt.Errorf("unexpected login response")
	}
	var doc struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(obj, &doc); err != nil || doc.Token == "" {
		return "", fmt.Errorf("login response carries no token")
	}
	return doc.Token, nil
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and wipe the cached server data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			if err := app.dropSession(); err != nil {
				return err
			}
			cmd.Println("Signed out. Queued offline changes were kept.")
			return nil
		},
	}
}
