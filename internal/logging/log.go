// Package logging builds the leveled go-logging backend used by the relay.
package logging

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

const format = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

// Backend is a shared leveled log backend; per-module loggers hang off it.
type Backend struct {
	leveled logging.LeveledBackend
}

// New returns a backend writing to w at the given level (e.g. "INFO").
func New(w io.Writer, level string) (*Backend, error) {
	lvl, err := logging.LogLevel(strings.ToUpper(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	base := logging.NewBackendFormatter(
		logging.NewLogBackend(w, "", 0),
		logging.MustStringFormatter(format),
	)
	leveled := logging.AddModuleLevel(base)
	leveled.SetLevel(lvl, "")
	return &Backend{leveled: leveled}, nil
}

// GetLogger returns a named logger bound to this backend.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b.leveled)
	return l
}
