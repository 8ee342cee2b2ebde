package main

import (
	"os"

	"github.com/danmuck/tagwire/internal/observability"
	"github.com/rs/zerolog/log"
)

func main() {
	observability.InitLogger("recordctl")
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("recordctl failed")
		os.Exit(1)
	}
}
