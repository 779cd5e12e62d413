package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func Init(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetReportCaller(true)
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.SetLevel(log.InfoLevel)
		log.WithError(err).WithField("level", level).Warn("Unknown log level, using info")
		return
	}
	log.SetLevel(lvl)
}
