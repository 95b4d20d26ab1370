package aisverify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aton(mmsi uint32) *MessageRecord {
	return &MessageRecord{ //nolint:exhaustruct
		Message: &AidToNavigation{Header: Header{Type: 21, MMSI: mmsi}}, //nolint:exhaustruct
	}
}

func scanMMSIs(ms *MessageStore) []uint32 {
	var out []uint32
	ms.Scan(func(r *MessageRecord) bool {
		out = append(out, r.Message.SourceMMSI())

		return true
	})

	return out
}

func TestMessageStore_UntrustedSkipped(t *testing.T) {
	var ms = NewMessageStore(3, EvictEpoch, []int{21}, nil)

	var rec = &MessageRecord{Message: newPositionReport(Header{Type: 1, MMSI: 5})} //nolint:exhaustruct
	var stored, reset = ms.Insert(rec)

	assert.False(t, stored)
	assert.False(t, reset)
	assert.Equal(t, 0, ms.Len())
	assert.Nil(t, ms.Newest())
}

func TestMessageStore_Epoch(t *testing.T) {
	var resets int
	var ms = NewMessageStore(3, EvictEpoch, []int{21}, func() { resets++ })

	for i := 1; i <= 3; i++ {
		var stored, reset = ms.Insert(aton(uint32(i)))
		require.True(t, stored)
		require.False(t, reset)
	}
	assert.Equal(t, []uint32{3, 2, 1}, scanMMSIs(ms))

	var rec = aton(4)
	var stored, reset = ms.Insert(rec)
	assert.True(t, stored)
	assert.True(t, reset)
	assert.Equal(t, 1, resets)
	assert.Equal(t, 0, rec.Slot)
	assert.Equal(t, []uint32{4}, scanMMSIs(ms), "everything before the reset is gone")
	assert.Equal(t, 1, ms.Len())
}

func TestMessageStore_Ring(t *testing.T) {
	var ms = NewMessageStore(3, EvictRing, []int{21}, func() { t.Fatal("ring never resets") })

	for i := 1; i <= 5; i++ {
		var _, reset = ms.Insert(aton(uint32(i)))
		require.False(t, reset)
	}

	assert.Equal(t, []uint32{5, 4, 3}, scanMMSIs(ms))
	assert.Equal(t, 3, ms.Len())
	assert.Equal(t, uint32(5), ms.Newest().Message.SourceMMSI())
	assert.Equal(t, 1, ms.Newest().Slot)
}

func TestMessageStore_ScanStops(t *testing.T) {
	var ms = NewMessageStore(5, EvictEpoch, []int{21}, nil)
	for i := 1; i <= 4; i++ {
		ms.Insert(aton(uint32(i)))
	}

	var seen int
	ms.Scan(func(*MessageRecord) bool {
		seen++

		return seen < 2
	})
	assert.Equal(t, 2, seen)
}

func TestMessageStore_Clear(t *testing.T) {
	var called bool
	var ms = NewMessageStore(2, EvictEpoch, []int{21}, func() { called = true })
	ms.Insert(aton(1))

	ms.Clear()

	assert.Equal(t, 0, ms.Len())
	assert.False(t, called)
	assert.Equal(t, 2, ms.Capacity())
}

func TestMessageStore_MarkVerified(t *testing.T) {
	var ms = NewMessageStore(1, EvictEpoch, []int{21}, nil)

	var old = aton(1)
	ms.Insert(old)
	assert.True(t, ms.MarkVerified(old))
	assert.True(t, old.Verified)

	var current = aton(2)
	ms.Insert(current)
	assert.False(t, ms.MarkVerified(old), "gone in the epoch reset")
	assert.False(t, current.Verified)
	assert.False(t, ms.MarkVerified(nil))
}

func TestParseEvictionPolicy(t *testing.T) {
	var p, err = ParseEvictionPolicy("ring")
	require.NoError(t, err)
	assert.Equal(t, EvictRing, p)

	_, err = ParseEvictionPolicy("lru")
	require.ErrorIs(t, err, ErrConfig)
}
