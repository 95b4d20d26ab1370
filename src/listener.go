package aisverify

import (
	"context"
	"strings"
)

// Listener reads sentences from one transport and pushes them, in arrival
// order, to a sink.  Run returns nil when ctx is cancelled and an error
// wrapping ErrTransport when the transport fails.
type Listener interface {
	Name() string
	Run(ctx context.Context, sink LineSink) error
}

// ExtractSentences splits received text into lines and keeps only those
// containing one of the accepted sentence tags, with anything before the
// '!' removed.
func ExtractSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		var start = SentenceStart(line)
		if start < 0 {
			continue
		}
		out = append(out, line[start:])
	}

	return out
}
