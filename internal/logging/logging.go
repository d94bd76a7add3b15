// Package logging builds the process logger. Components take a Named
// sub-logger of the root so every line carries its origin.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

type Options struct {
	// Level is one of trace, debug, info, warn, error. Unknown values mean info.
	Level string
	// Format is "json" or "text".
	Format string
	Output io.Writer
}

func New(name string, opts Options) hclog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ParseLevel(opts.Level),
		Output:     out,
		JSONFormat: strings.EqualFold(opts.Format, "json"),
	})
}

func ParseLevel(s string) hclog.Level {
	lvl := hclog.LevelFromString(strings.TrimSpace(s))
	if lvl == hclog.NoLevel {
		return hclog.Info
	}
	return lvl
}
