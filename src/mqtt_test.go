package aisverify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err error
}

func (f *fakeToken) Wait() bool {
	return true
}

func (f *fakeToken) WaitTimeout(time.Duration) bool {
	return true
}

func (f *fakeToken) Done() <-chan struct{} {
	var ch = make(chan struct{})
	close(ch)

	return ch
}

func (f *fakeToken) Error() error {
	return f.err
}

type published struct {
	topic   string
	qos     byte
	retain  bool
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.msgs = append(p.msgs, published{topic: topic, qos: qos, retain: retained, payload: payload.([]byte)}) //nolint:forcetypeassert

	return &fakeToken{err: p.err}
}

func TestMQTTSink_Topic(t *testing.T) {
	var m = NewMQTTSinkWithPublisher(&fakePublisher{}, "ais/", DiscardLogger()) //nolint:exhaustruct
	assert.Equal(t, "ais/verified", m.Topic(EventVerified))

	m = NewMQTTSinkWithPublisher(&fakePublisher{}, "ais", DiscardLogger()) //nolint:exhaustruct
	assert.Equal(t, "ais/error", m.Topic(EventError))
}

func TestMQTTSink_Consume(t *testing.T) {
	var pub = &fakePublisher{} //nolint:exhaustruct
	var m = NewMQTTSinkWithPublisher(pub, "aisverify", DiscardLogger())

	var events = make(chan Event, 2)
	events <- verifiedEvent(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	events <- Event{Kind: EventReset, Slot: -1} //nolint:exhaustruct
	close(events)

	require.NoError(t, m.Consume(context.Background(), events))

	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "aisverify/verified", pub.msgs[0].topic)
	assert.Equal(t, byte(0), pub.msgs[0].qos)
	assert.False(t, pub.msgs[0].retain)
	assert.Equal(t, "aisverify/reset", pub.msgs[1].topic)

	var ev Event
	require.NoError(t, json.Unmarshal(pub.msgs[0].payload, &ev))
	assert.Equal(t, uint32(992351000), ev.Row.MMSI)
}

func TestMQTTSink_PublishError(t *testing.T) {
	var pub = &fakePublisher{err: errors.New("not connected")} //nolint:exhaustruct
	var m = NewMQTTSinkWithPublisher(pub, "aisverify", DiscardLogger())

	assert.EqualError(t, m.Publish(Event{Kind: EventReset}), "not connected") //nolint:exhaustruct
}
