package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Remember recently decoded messages which a later
 *		signature message might authenticate.
 *
 * Description:	A fixed number of slots, the size of the visible
 *		working set.  Two ways of making room:
 *
 *		epoch	When the slot counter reaches capacity, everything
 *			is forgotten, including half collected fragments,
 *			and numbering starts again at slot 0.
 *
 *		ring	The oldest slot is overwritten.
 *
 *		Only "trusted target" message types are kept.
 *
 *		Like the fragment assembler, only the consumer touches this.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"slices"
	"time"
)

type EvictionPolicy string

const (
	EvictEpoch EvictionPolicy = "epoch"
	EvictRing  EvictionPolicy = "ring"
)

func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch EvictionPolicy(s) {
	case EvictEpoch, EvictRing:
		return EvictionPolicy(s), nil
	default:
		return "", fmt.Errorf("%w: unknown store eviction policy %q", ErrConfig, s)
	}
}

// MessageRecord is a stored correlation target.
type MessageRecord struct {
	Message   Message
	Bits      Bits  // Payload trimmed to its declared length.
	Timestamp int64 // Reconstructed sampling time, epoch seconds.
	Verified  bool
	Raw       []string // Original sentences.
	Slot      int
	Received  time.Time
}

// RawBytes is the original sentence text, CRLF separated when there were
// several fragments.
func (r *MessageRecord) RawBytes() []byte {
	var a = Assembly{Raw: r.Raw} //nolint:exhaustruct

	return a.RawBytes()
}

type MessageStore struct {
	capacity int
	policy   EvictionPolicy
	trusted  []int
	slots    []*MessageRecord
	counter  int // Total inserts since the last epoch reset.
	onReset  func()
}

// NewMessageStore creates a store.  onReset, if not nil, is called whenever
// an epoch reset clears the store.
func NewMessageStore(capacity int, policy EvictionPolicy, trustedTypes []int, onReset func()) *MessageStore {
	if capacity < 1 {
		capacity = 1
	}

	return &MessageStore{
		capacity: capacity,
		policy:   policy,
		trusted:  slices.Clone(trustedTypes),
		slots:    make([]*MessageRecord, capacity),
		counter:  0,
		onReset:  onReset,
	}
}

// Trusted reports whether messages of this type are kept.
func (ms *MessageStore) Trusted(msgType int) bool {
	return slices.Contains(ms.trusted, msgType)
}

/*-------------------------------------------------------------------
 *
 * Name:        Insert
 *
 * Purpose:    	Store a record in the next slot.
 *
 * Returns:	stored	- false when the type is not trusted.
 *
 *		reset	- true when an epoch reset happened first.
 *
 *--------------------------------------------------------------------*/

func (ms *MessageStore) Insert(rec *MessageRecord) (bool, bool) {
	if !ms.Trusted(rec.Message.MessageType()) {
		return false, false
	}

	var reset bool
	if ms.policy == EvictEpoch && ms.counter >= ms.capacity {
		ms.reset()
		reset = true
	}

	rec.Slot = ms.counter % ms.capacity
	ms.slots[rec.Slot] = rec
	ms.counter++

	return true, reset
}

// Scan calls fn for each record, newest first, until fn returns false.
func (ms *MessageStore) Scan(fn func(*MessageRecord) bool) {
	var n = ms.Len()
	for i := range n {
		var slot = (ms.counter - 1 - i) % ms.capacity
		if !fn(ms.slots[slot]) {
			return
		}
	}
}

// Newest returns the most recently stored record, or nil.
func (ms *MessageStore) Newest() *MessageRecord {
	var newest *MessageRecord
	ms.Scan(func(r *MessageRecord) bool {
		newest = r

		return false
	})

	return newest
}

func (ms *MessageStore) Len() int {
	return min(ms.counter, ms.capacity)
}

func (ms *MessageStore) Capacity() int {
	return ms.capacity
}

// MarkVerified flags a record as authenticated.  It has no effect once the
// record is no longer in the store.
func (ms *MessageStore) MarkVerified(rec *MessageRecord) bool {
	if rec == nil || rec.Slot < 0 || rec.Slot >= ms.capacity || ms.slots[rec.Slot] != rec {
		return false
	}
	rec.Verified = true

	return true
}

// Clear forgets all records without calling the reset hook.
func (ms *MessageStore) Clear() {
	clear(ms.slots)
	ms.counter = 0
}

func (ms *MessageStore) reset() {
	ms.Clear()
	if ms.onReset != nil {
		ms.onReset()
	}
}
