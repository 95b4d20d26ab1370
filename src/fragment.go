package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Reassemble multi-sentence AIS messages.
 *
 * Description:	Messages longer than one sentence are split over up to 9
 *		fragments sharing a sequence id.  Fragments are collected
 *		per sentence tag and sequence id until every index
 *		1..count has been seen, in any order.
 *
 *		The sequence id is only a single digit so it is reused
 *		quickly.  A new index 1 for a group which already has its
 *		index 1 means the sender has started over; the stale
 *		partial group is thrown away.  Groups which never complete
 *		are evicted after a time to live.
 *
 *		Called only from the single consumer so no locking.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"
	"time"
)

// Assembly is a complete logical message, ready for decoding.
type Assembly struct {
	Tag      string
	Channel  string
	Payload  string   // Armor of all fragments, in order.
	FillBits int      // From the final fragment.
	Raw      []string // Original sentences, in order.
}

// IsVDE reports whether the fragments were VEEDM sentences.
func (a *Assembly) IsVDE() bool {
	return a.Tag == TagVEEDM
}

// RawBytes is the original sentence text, CRLF separated when there were
// several fragments.
func (a *Assembly) RawBytes() []byte {
	return []byte(strings.Join(a.Raw, "\r\n"))
}

type fragmentGroup struct {
	count     int
	fragments map[int]*Sentence
	started   time.Time
}

type FragmentAssembler struct {
	groups map[string]*fragmentGroup
	ttl    time.Duration
	now    func() time.Time
}

// NewFragmentAssembler creates an assembler.  ttl of 0 disables expiry.
func NewFragmentAssembler(ttl time.Duration) *FragmentAssembler {
	return &FragmentAssembler{
		groups: make(map[string]*fragmentGroup),
		ttl:    ttl,
		now:    time.Now,
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        Add
 *
 * Purpose:    	Offer one parsed sentence to the assembler.
 *
 * Returns:	Assembly when this sentence completed a message.
 *		nil, nil while still collecting.
 *		Error wrapping ErrFragment for a duplicate fragment, which
 *		is otherwise ignored.
 *
 *--------------------------------------------------------------------*/

func (fa *FragmentAssembler) Add(s *Sentence) (*Assembly, error) {
	fa.expire()

	if s.FragmentCount == 1 {
		return &Assembly{
			Tag:      s.Tag,
			Channel:  s.Channel,
			Payload:  s.Payload,
			FillBits: s.FillBits,
			Raw:      []string{s.Raw},
		}, nil
	}

	// AIVDM and VEEDM numbering are independent.
	var key = s.Tag + "," + s.SequenceID
	var g, open = fa.groups[key]

	switch {
	case !open:
		g = fa.newGroup(key, s.FragmentCount)
	case g.count != s.FragmentCount:
		// Different shape, can't belong with what we have.
		g = fa.newGroup(key, s.FragmentCount)
	case s.FragmentNumber == 1 && g.fragments[1] != nil:
		// Sequence id reused before the previous message completed.
		g = fa.newGroup(key, s.FragmentCount)
	case g.fragments[s.FragmentNumber] != nil:
		return nil, fmt.Errorf("%w: duplicate fragment %d of %d for %s sequence %q", ErrFragment, s.FragmentNumber, s.FragmentCount, s.Tag, s.SequenceID)
	}

	g.fragments[s.FragmentNumber] = s

	if len(g.fragments) < g.count {
		return nil, nil //nolint:nilnil
	}

	delete(fa.groups, key)

	var a = &Assembly{ //nolint:exhaustruct
		Tag:     s.Tag,
		Channel: g.fragments[1].Channel,
	}

	var sb strings.Builder
	for i := 1; i <= g.count; i++ {
		var f = g.fragments[i]
		sb.WriteString(f.Payload)
		a.Raw = append(a.Raw, f.Raw)
	}
	a.Payload = sb.String()
	a.FillBits = g.fragments[g.count].FillBits

	return a, nil
}

// Reset forgets every partially collected message.
func (fa *FragmentAssembler) Reset() {
	clear(fa.groups)
}

// Pending is the number of incomplete groups.
func (fa *FragmentAssembler) Pending() int {
	return len(fa.groups)
}

func (fa *FragmentAssembler) newGroup(key string, count int) *fragmentGroup {
	var g = &fragmentGroup{
		count:     count,
		fragments: make(map[int]*Sentence, count),
		started:   fa.now(),
	}
	fa.groups[key] = g

	return g
}

func (fa *FragmentAssembler) expire() {
	if fa.ttl <= 0 {
		return
	}

	var cutoff = fa.now().Add(-fa.ttl)
	for key, g := range fa.groups {
		if g.started.Before(cutoff) {
			delete(fa.groups, key)
		}
	}
}
