package commands

import (
	"sneakernet/internal/service/app"

	"github.com/spf13/cobra"
)

// chat talks to a running daemon (sneakernet serve) at --addr.
func chatCmd() *cobra.Command {
	var nodeID string
	cmd := &cobra.Command{
		Use:   "chat <contact-pubkey>",
		Short: "Open a terminal chat with a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(cfg.Server.Addr)
			go func() {
				<-cmd.Context().Done()
				a.Stop()
			}()
			return a.Run(cmd.Context(), args[0], nodeID)
		},
	}
	cmd.Flags().StringVar(&nodeID, "node", "", "contact's node ID to dial; without it, wait for the contact")
	return cmd
}
