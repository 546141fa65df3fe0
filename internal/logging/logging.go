// Package logging configures the process-wide zerolog logger. All
// diagnostics go to stderr, one line per message, in the form
// [ISO-timestamp] [component-name] [LEVEL] message. Stdout stays reserved
// for the host response document.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs the stderr console logger at the given level.
func Setup(level zerolog.Level) {
	SetupWriter(os.Stderr, level)
}

// SetupWriter is Setup with an explicit sink, used by tests.
func SetupWriter(out io.Writer, level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	w := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: time.RFC3339,
		PartsOrder: []string{
			zerolog.TimestampFieldName,
			"component",
			zerolog.LevelFieldName,
			zerolog.MessageFieldName,
		},
		FieldsExclude: []string{"component"},
	}
	w.FormatTimestamp = func(i interface{}) string {
		return fmt.Sprintf("[%v]", i)
	}
	w.FormatLevel = func(i interface{}) string {
		return fmt.Sprintf("[%s]", strings.ToUpper(fmt.Sprintf("%v", i)))
	}
	w.FormatPartValueByName = func(i interface{}, name string) string {
		if name == "component" {
			return fmt.Sprintf("[%v]", i)
		}
		return fmt.Sprintf("%v", i)
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)
}

// Component returns a logger tagged with a component name, rendered as the
// second bracketed part of each line.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
