// Command server runs the ETHANI backend API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethani/backend/chain"
	"github.com/ethani/backend/config"
	"github.com/ethani/backend/server"
	"github.com/ethani/backend/store"
)

func main() {
	zlog := server.GetZlog()

	cfg, err := config.Load(os.Getenv("ETHANI_CONFIG"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to open database")
	}
	defer st.Close()

	ch := chain.New(cfg.Blockchain)
	zlog.Info().Str("mode", string(ch.Mode())).Msg("blockchain integration ready")

	handler := server.NewHandler(st, ch)
	srv := server.New(cfg.Addr(), handler, cfg.CORS.Origins)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("server exited with error")
	}
}
