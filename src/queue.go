package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:   	Received sentence queue.
 *
 * Description: Each listener runs in its own goroutine.  This queue
 *		collects lines from all of them so they can be processed
 *		serially, in arrival order, by a single consumer.  That
 *		single consumer is what keeps the fragment groups and the
 *		message store consistent without any locking.
 *
 *		The queue is bounded.  When it is full a listener either
 *		waits (block) or the oldest queued line is thrown away to
 *		make room (drop-oldest).
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type OverloadPolicy string

const (
	OverloadBlock      OverloadPolicy = "block"
	OverloadDropOldest OverloadPolicy = "drop-oldest"
)

func ParseOverloadPolicy(s string) (OverloadPolicy, error) {
	switch OverloadPolicy(s) {
	case OverloadBlock, OverloadDropOldest:
		return OverloadPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown queue overload policy %q", ErrConfig, s)
	}
}

// Line is one candidate sentence and where it came from.
type Line struct {
	Source   string
	Text     string
	Received time.Time
}

// LineSink accepts lines from a listener.
type LineSink interface {
	Push(ctx context.Context, line Line) error
}

type LineQueue struct {
	ch        chan Line
	policy    OverloadPolicy
	dropped   atomic.Int64
	closeOnce sync.Once
}

func NewLineQueue(size int, policy OverloadPolicy) *LineQueue {
	if size < 1 {
		size = 1
	}

	return &LineQueue{ //nolint:exhaustruct
		ch:     make(chan Line, size),
		policy: policy,
	}
}

// Push adds a line.  Must not be called after Close.
func (q *LineQueue) Push(ctx context.Context, line Line) error {
	if q.policy == OverloadDropOldest {
		for {
			select {
			case q.ch <- line:
				return nil
			default:
			}

			select {
			case <-q.ch:
				q.dropped.Add(1)
			default:
			}
		}
	}

	select {
	case q.ch <- line:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Lines is drained by the consumer.  Closed by Close.
func (q *LineQueue) Lines() <-chan Line {
	return q.ch
}

func (q *LineQueue) Close() {
	q.closeOnce.Do(func() {
		close(q.ch)
	})
}

func (q *LineQueue) Len() int {
	return len(q.ch)
}

// Dropped counts lines discarded by the drop-oldest policy.
func (q *LineQueue) Dropped() int64 {
	return q.dropped.Load()
}
