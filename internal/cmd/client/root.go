package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the event bus client.
// It registers the events and services command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "globular-events",
		Short: "Globular event bus client commands",
	}
	root.AddCommand(NewEventsCommand(nil))
	root.AddCommand(NewServicesCommand(baseURL))
	return root
}
