package logging

import (
	"os"

	log "github.com/sirupsen/logrus"

	"servus-backend/internal/config"
)

// Setup configures the process-wide logrus logger.
func Setup(cfg *config.Config) {
	log.SetOutput(os.Stdout)

	if cfg.Log.Format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&log.JSONFormatter{})
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("[Logging] unknown level %q, defaulting to info", cfg.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// Component returns an entry tagged with the component name.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
