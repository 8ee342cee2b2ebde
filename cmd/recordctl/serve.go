package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/tagwire/internal/server"
	"github.com/danmuck/tagwire/internal/store"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the codec and record store over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if flags.format != "" {
				cfg.Text.Format = flags.format
			}
			st, err := store.Open(cfg.Store)
			if err != nil {
				return err
			}
			defer func() {
				if err := st.Close(); err != nil {
					log.Error().Err(err).Msg("store close failed")
				}
			}()

			srv, err := server.New(cfg, st)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log.Info().
				Str("service", cfg.Name).
				Str("store", cfg.Store.Backend).
				Str("format", cfg.Text.Format).
				Msg("recordctl serve")
			return srv.Serve(ctx)
		},
	}
}
