package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/dmitrijs2005/tripdesk/internal/client/models"
	"github.com/spf13/cobra"
)

func newTripsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "Browse and manage trips",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all trips",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := app.Client.Get(cmd.Context(), "/trips")
			if err != nil {
				return err
			}
			res, err := api.DecodeCollection(body, "trips")
			if err != nil {
				printJSON(cmd, body)
				return nil
			}
			for _, raw := range res.Records {
				var t models.Trip
				if err := json.Unmarshal(raw, &t); err != nil {
					continue
				}
				cmd.Printf("%-20s  %-28s  %s\n", t.ID, t.Title, t.Destination)
			}
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := app.Client.Get(cmd.Context(), "/trips/"+args[0])
			if err != nil {
				return err
			}
			printJSON(cmd, body)
			return nil
		},
	}

	var title, destination string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("-t/--title is required")
			}
			payload, err := json.Marshal(map[string]string{
				"title":       title,
				"destination": destination,
			})
			if err != nil {
				return err
			}
			body, err := app.Client.Post(cmd.Context(), "/trips", payload)
			if err != nil {
				return reportQueued(cmd, err)
			}
			printJSON(cmd, body)
			return nil
		},
	}
	create.Flags().StringVarP(&title, "title", "t", "", "trip title")
	create.Flags().StringVarP(&destination, "destination", "d", "", "destination")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a trip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.Client.Delete(cmd.Context(), "/trips/"+args[0]); err != nil {
				return reportQueued(cmd, err)
			}
			cmd.Println("Deleted.")
			return nil
		},
	}

	cmd.AddCommand(list, show, create, remove)
	return cmd
}
