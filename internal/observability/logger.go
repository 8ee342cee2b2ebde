package observability

import (
	"github.com/danmuck/tagwire/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger configures the process logger from the environment and tags it with app.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()
	logger := log.Logger.With().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
