package aisverify

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (log.Level, error) {
	var level, err = log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("%w: log level %q", ErrConfig, s)
	}

	return level, nil
}

// NewLogger is the one logger everything else gets, directly or With'd.
func NewLogger(w io.Writer, level log.Level, json bool) *log.Logger {
	var opts = log.Options{ //nolint:exhaustruct
		Level:           level,
		Prefix:          "aisverify",
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	}

	if json {
		opts.Formatter = log.JSONFormatter
	}

	return log.NewWithOptions(w, opts)
}

// DiscardLogger is for tests and library users who want silence.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard)
}
