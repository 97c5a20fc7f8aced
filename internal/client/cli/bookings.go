package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/dmitrijs2005/tripdesk/internal/client/models"
	"github.com/spf13/cobra"
)

func newBookingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Browse and manage bookings",
	}

	var listTrip string
	list := &cobra.Command{
		Use:   "list",
		Short: "List bookings, optionally for one trip",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/bookings"
			if listTrip != "" {
				path = "/trips/" + listTrip + "/bookings"
			}
			body, err := app.Client.Get(cmd.Context(), path)
			if err != nil {
				return err
			}
			res, err := api.DecodeCollection(body, "bookings")
			if err != nil {
				printJSON(cmd, body)
				return nil
			}
			for _, raw := range res.Records {
				var b models.Booking
				if err := json.Unmarshal(raw, &b); err != nil {
					continue
				}
				cmd.Printf("%-20s  trip=%-20s  %-20s  seats=%d  %s\n", b.ID, b.TripID, b.CustomerName, b.Seats, b.Status)
			}
			return nil
		},
	}
	list.Flags().StringVarP(&listTrip, "trip", "t", "", "filter by trip id")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := app.Client.Get(cmd.Context(), "/bookings/"+args[0])
			if err != nil {
				return err
			}
			printJSON(cmd, body)
			return nil
		},
	}

	var tripID, customer string
	var seats int
	book := &cobra.Command{
		Use:   "book",
		Short: "Create a booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			if tripID == "" || customer == "" {
				return fmt.Errorf("-t/--trip and -c/--customer are required")
			}
			payload, err := json.Marshal(map[string]any{
				"tripId":       tripID,
				"customerName": customer,
				"seats":        seats,
			})
			if err != nil {
				return err
			}
			body, err := app.Client.Post(cmd.Context(), "/bookings", payload)
			if err != nil {
				return reportQueued(cmd, err)
			}
			printJSON(cmd, body)
			return nil
		},
	}
	book.Flags().StringVarP(&tripID, "trip", "t", "", "trip id")
	book.Flags().StringVarP(&customer, "customer", "c", "", "customer name")
	book.Flags().IntVarP(&seats, "seats", "s", 1, "number of seats")

	cancel := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("booking id required")
			}
			if _, err := app.Client.Post(cmd.Context(), "/bookings/"+args[0]+"/cancel", nil); err != nil {
				return reportQueued(cmd, err)
			}
			cmd.Println("Cancelled.")
			return nil
		},
	}

	cmd.AddCommand(list, show, book, cancel)
	return cmd
}
