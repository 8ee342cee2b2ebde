package testlog

import (
	"testing"

	"github.com/danmuck/tagwire/internal/logging"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Str("test", t.Name()).Msg("start")
}
