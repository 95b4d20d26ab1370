package aisverify

import (
	"context"
)

// EventSink consumes events until the channel is closed or ctx is done.
type EventSink interface {
	Name() string
	Consume(ctx context.Context, events <-chan Event) error
}

// Events a sink can fall behind by before it starts losing them.
const sinkBuffer = 256
