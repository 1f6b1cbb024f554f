package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/meridianbank/support-assistant/internal/config"
)

// Init configures the global zerolog logger from config. Unknown level
// strings fall back to info rather than failing startup.
func Init(cfg *config.Config) {
	if cfg.LogPretty {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}
