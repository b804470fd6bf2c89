// Package logging wires the crawl engine's structured logger, grounded on
// the wider example pack's sirupsen/logrus conventions
// (Livepeer-FrameWorks-monorepo/pkg/config/env.go and pkg/middleware/utils.go).
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing text-formatted lines to stdout at the
// given level (falling back to info on an unrecognized level).
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	return logger
}
