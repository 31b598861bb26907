// Package commands implements the sneakernet command line.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sneakernet/internal/bootstrap"
	"sneakernet/internal/config"
	"sneakernet/internal/utils/log"

	"github.com/spf13/cobra"
)

var (
	cfg *config.Config
	rt  *bootstrap.Runtime
)

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "sneakernet",
		Short:         "Pair in person, then chat peer to peer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if err := log.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
				return err
			}

			rt, err = bootstrap.Open(cmd.Context(), cfg)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			defer log.Sync()
			if rt == nil {
				return nil
			}
			err := rt.Close(context.Background())
			rt = nil
			return err
		},
	}
	config.Flags(root.PersistentFlags())

	root.AddCommand(keysCmd(), exchangeCmd(), contactsCmd(), qrCmd(), serveCmd(), chatCmd())

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if rt != nil {
			_ = rt.Close(context.Background())
		}
	}
	return err
}
