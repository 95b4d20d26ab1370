package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Structured events for whoever wants to display what the
 *		validator is doing.
 *
 * Description:	The consumer publishes; console, CSV, TCP and MQTT sinks
 *		subscribe.  A subscriber which can't keep up loses events
 *		rather than holding up message processing.
 *
 *---------------------------------------------------------------*/

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventDecoded  EventKind = "decoded"
	EventStored   EventKind = "stored"
	EventVerified EventKind = "verified"
	EventRejected EventKind = "rejected"
	EventReset    EventKind = "reset"
	EventError    EventKind = "error"
)

// Row holds the dashboard columns for one message.
type Row struct {
	Description string   `json:"description"`
	Type        int      `json:"type"`
	MMSI        uint32   `json:"mmsi"`
	DestMMSI    uint32   `json:"dest_mmsi,omitempty"`
	Name        string   `json:"name,omitempty"`
	AidType     string   `json:"aid_type,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
	MGRS        string   `json:"mgrs,omitempty"`
	Verified    bool     `json:"verified"`
}

type Event struct {
	Kind   EventKind `json:"kind"`
	Time   time.Time `json:"time"`
	Slot   int       `json:"slot"` // -1 when not stored.
	Source string    `json:"source,omitempty"`
	Row    *Row      `json:"row,omitempty"`
	Error  string    `json:"error,omitempty"`
}

// NewRow extracts the display fields of a message.
func NewRow(m Message, verified bool) *Row {
	var row = &Row{ //nolint:exhaustruct
		Description: Describe(m),
		Type:        m.MessageType(),
		MMSI:        m.SourceMMSI(),
		Verified:    verified,
	}

	var lat, lon = Unknown, Unknown

	switch msg := m.(type) {
	case *AidToNavigation:
		row.Name = msg.Name
		row.AidType = AidTypeName(msg.AidType)
		lat, lon = msg.Lat, msg.Lon
	case *PositionReport:
		row.Name = msg.Name
		lat, lon = msg.Lat, msg.Lon
	case *BinaryMessage:
		row.DestMMSI = msg.DestMMSI
	}

	if lat != Unknown && lon != Unknown {
		row.Lat = &lat
		row.Lon = &lon
		if grid, err := MGRS(lat, lon, 5); err == nil {
			row.MGRS = grid
		}
	}

	return row
}

type EventBus struct {
	mu      sync.Mutex
	subs    map[int]chan Event
	next    int
	lastErr string
	dropped int
	closed  bool
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan Event)} //nolint:exhaustruct
}

// Subscribe returns a channel of events and a function to unsubscribe.
// The channel is closed by unsubscribe or Close.
func (b *EventBus) Subscribe(buffer int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var ch = make(chan Event, buffer)
	if b.closed {
		close(ch)

		return ch, func() {}
	}

	var id = b.next
	b.next++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish never blocks.  A nil bus discards everything.
func (b *EventBus) Publish(ev Event) {
	if b == nil {
		return
	}

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Kind == EventError {
		b.lastErr = ev.Error
	}

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped++
		}
	}
}

// LastError is the most recent error event text, for a status line.
func (b *EventBus) LastError() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.lastErr
}

// Dropped counts events lost to slow subscribers.
func (b *EventBus) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
