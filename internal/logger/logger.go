package logger

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger. Unknown levels fall back to info.
func Init(level, format string) {
	log.SetOutput(os.Stderr)
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
