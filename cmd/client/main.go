package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sneakernet/internal/service/app"

	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", "localhost:9090", "daemon address")
	nodeID := pflag.String("node", "", "contact's node ID to dial; without it, wait for the contact")
	pflag.Parse()

	if pflag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: client [--addr host:port] [--node id] <contact-pubkey>")
		os.Exit(2)
	}
	contact := pflag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := app.NewApp(*addr)
	go func() {
		<-ctx.Done()
		app.Stop()
	}()

	if err := app.Run(ctx, contact, *nodeID); err != nil {
		fmt.Fprintln(os.Stderr, "chat failed:", err)
		os.Exit(1)
	}
}
