package log

import (
	"io"
	"os"

	"github.com/routestream/routestream/pkg/foundation/cerrors"
	"github.com/rs/zerolog"
)

// Format selects how log lines are rendered.
type Format int

const (
	// FormatCLI renders colored, human readable lines.
	FormatCLI Format = iota
	// FormatJSON renders one JSON object per line.
	FormatJSON
)

var formats = map[string]Format{
	"cli":  FormatCLI,
	"json": FormatJSON,
}

func ParseFormat(s string) (Format, error) {
	f, ok := formats[s]
	if !ok {
		return -1, cerrors.Errorf("unsupported log format %q (want cli or json)", s)
	}
	return f, nil
}

// ParseLevel parses a zerolog level, "" means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	l, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, cerrors.Errorf("unsupported log level %q: %w", s, err)
	}
	return l, nil
}

// GetWriter returns the stderr writer for format f. Logs never go to stdout,
// which carries the stream output.
func GetWriter(f Format) io.Writer {
	return newWriter(f, os.Stderr)
}

func newWriter(f Format, out io.Writer) io.Writer {
	if f != FormatCLI {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02T15:04:05Z07:00"}
}
