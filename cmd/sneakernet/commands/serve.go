package commands

import (
	"sneakernet/internal/service/server"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP and WebSocket daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.NewHttpServer(rt.Service, cfg.Server.Addr).Run(cmd.Context())
		},
	}
}
