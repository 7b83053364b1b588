// Package common provides shared infrastructure for the playground service:
// the global logger and the Docker client abstraction used by every
// lifecycle component.
//
// The logging setup routes error-level messages to stderr while all other
// levels go to stdout, so container orchestrators and shell scripts can
// treat the two streams differently.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log output to stdout or stderr based on
// the entry's level. It operates on the final formatted bytes, so it works
// with both the text and JSON formatters.
type OutputSplitter struct{}

// Write sends entries containing "level=error" to stderr and everything
// else to stdout.
func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	if bytes.Contains(p, []byte("level=error")) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the global logger instance for the playground service. All
// packages log through it so formatting and routing stay uniform.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}

// ConfigureLogger applies the level and format from configuration.
// Unknown levels fall back to info, unknown formats to text.
func ConfigureLogger(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	if format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
