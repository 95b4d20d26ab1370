package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Drop duplicate sentences which are too close together.
 *
 * Description:	With more than one receiver listening to the same
 *		channel, the same sentence can arrive several times.
 *		Passing all copies on would waste verification calls and,
 *		worse, make the fragment assembler see duplicate fragments.
 *
 *		Only a hash is kept, to reduce memory and the amount of
 *		computation for comparisons.  There is a very very small
 *		probability that two unrelated sentences will result in the
 *		same hash, and the undesired dropping of the sentence.
 *
 *		If we run out of room the oldest entries are overwritten
 *		before they expire.
 *
 *---------------------------------------------------------------*/

import (
	"hash/fnv"
	"time"
)

const DedupeHistoryMax = 64

type historyEntry struct {
	timeStamp time.Time
	hash      uint64
}

type Dedupe struct {
	window     time.Duration
	history    [DedupeHistoryMax]historyEntry
	insertNext int
}

// NewDedupe returns nil when window is not positive, meaning disabled.
func NewDedupe(window time.Duration) *Dedupe {
	if window <= 0 {
		return nil
	}

	return &Dedupe{window: window} //nolint:exhaustruct
}

// Seen reports whether raw was already seen within the window, and
// remembers it if not.
func (d *Dedupe) Seen(raw string, now time.Time) bool {
	var h = fnv.New64a()
	h.Write([]byte(raw))
	var sum = h.Sum64()

	for _, e := range d.history {
		if !e.timeStamp.IsZero() && e.hash == sum && now.Sub(e.timeStamp) < d.window {
			return true
		}
	}

	d.history[d.insertNext] = historyEntry{timeStamp: now, hash: sum}
	d.insertNext = (d.insertNext + 1) % DedupeHistoryMax

	return false
}
