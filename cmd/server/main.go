package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sneakernet/internal/bootstrap"
	"sneakernet/internal/config"
	"sneakernet/internal/service/server"
	"sneakernet/internal/utils/log"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	config.Flags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		panic(err)
	}
	if err := log.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal("init service failed", zap.Error(err))
	}
	defer rt.Close(context.Background())

	c := server.NewHttpServer(rt.Service, cfg.Server.Addr)
	if err := c.Run(ctx); err != nil {
		log.Error("http server stopped", zap.Error(err))
		os.Exit(1)
	}
}
