package cli

import (
	"encoding/json"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/dmitrijs2005/tripdesk/internal/client/models"
	"github.com/spf13/cobra"
)

func newEnquiriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "enquiries",
		Short: "List customer enquiries",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := app.Client.Get(cmd.Context(), "/enquiries")
			if err != nil {
				return err
			}
			res, err := api.DecodeCollection(body, "enquiries")
			if err != nil {
				printJSON(cmd, body)
				return nil
			}
			for _, raw := range res.Records {
				var e models.Enquiry
				if err := json.Unmarshal(raw, &e); err != nil {
					continue
				}
				cmd.Printf("%-20s  %-24s  %-10s  %s\n", e.ID, e.Name, e.Status, e.Message)
			}
			return nil
		},
	}
}

func newStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the dashboard snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := app.Client.Get(cmd.Context(), "/dashboard/stats")
			if err != nil {
				return err
			}
			obj, err := api.DecodeObject(body)
			if err != nil || obj == nil {
				printJSON(cmd, body)
				return nil
			}
			var s models.Stats
			if err := json.Unmarshal(obj, &s); err != nil {
				printJSON(cmd, body)
				return nil
			}
			cmd.Printf("Bookings:  %d\n", s.TotalBookings)
			cmd.Printf("Revenue:   %.2f\n", s.TotalRevenue)
			cmd.Printf("Trips:     %d\n", s.ActiveTrips)
			cmd.Printf("Enquiries: %d\n", s.OpenEnquiries)
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := app.Client.Get(cmd.Context(), "/auth/profile")
			if err != nil {
				return err
			}
			obj, err := api.DecodeObject(body)
			if err != nil || obj == nil {
				printJSON(cmd, body)
				return nil
			}
			var p models.Profile
			if err := json.Unmarshal(obj, &p); err != nil {
				printJSON(cmd, body)
				return nil
			}
			cmd.Printf("%s <%s> (%s)\n", p.Name, p.Email, p.Role)
			return nil
		},
	}
}

func newSyncCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull all collections and replay queued changes now",
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Monitor.SetOnline(app.Monitor.Probe(cmd.Context()))

			if err := app.Queue.ProcessPending(cmd.Context()); err != nil {
				return err
			}
			if err := app.Engine.SyncAll(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("Sync complete.")
			return nil
		},
	}
}

func newQueueCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show how many offline changes await replay",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Queue.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			if n == 0 {
				cmd.Println("Queue is empty.")
				return nil
			}
			cmd.Printf("%d change(s) waiting for sync.\n", n)
			return nil
		},
	}
}
