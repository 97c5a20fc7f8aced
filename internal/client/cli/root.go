package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/tripdesk/internal/client/api"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree around a wired App.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:          "tripdesk",
		Short:        "Offline-first terminal client for the trip booking back office",
		SilenceUsage: true,
	}

	root.AddCommand(
		newLoginCmd(app),
		newLogoutCmd(app),
		newTripsCmd(app),
		newBookingsCmd(app),
		newEnquiriesCmd(app),
		newStatsCmd(app),
		newWhoamiCmd(app),
		newSyncCmd(app),
		newQueueCmd(app),
	)
	return root
}

// printJSON renders an API or cache response for the terminal.
func printJSON(cmd *cobra.Command, body []byte) {
	var buf any
	if err := json.Unmarshal(body, &buf); err != nil {
		cmd.Println(string(body))
		return
	}
	pretty, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		cmd.Println(string(body))
		return
	}
	cmd.Println(string(pretty))
}

// reportQueued turns a queued-offline error into a friendly message. Any
// other error passes through.
func reportQueued(cmd *cobra.Command, err error) error {
	var qe *api.QueuedError
	if errors.As(err, &qe) {
		cmd.Println(fmt.Sprintf("offline: change saved locally and queued for sync (ref %s)", qe.QueueID))
		return nil
	}
	return err
}
