// Package logging configures loggo output for topichub binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = loggo.INFO

// ParseLevel parses a level name such as "debug", "warn" or "ERROR".
// The empty string yields DefaultLevel.
func ParseLevel(s string) (loggo.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLevel, nil
	}
	level, ok := loggo.ParseLevel(s)
	if !ok {
		return loggo.UNSPECIFIED, errors.NotValidf("log level %q", s)
	}
	return level, nil
}

// Configure replaces the default loggo writer with one writing to w and
// sets the root level. A nil writer means stderr.
func Configure(level string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return errors.Trace(err)
	}
	if w == nil {
		w = os.Stderr
	}

	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(w, Format)); err != nil {
		return errors.Annotate(err, "replacing log writer")
	}
	return errors.Trace(loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", lvl)))
}

// Format renders an entry as "timestamp [LEVEL] module: message".
func Format(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02T15:04:05.000")
	return fmt.Sprintf("%s [%s] %s: %s", ts, entry.Level, entry.Module, entry.Message)
}
