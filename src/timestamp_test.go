package aisverify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestReconstructTimestamp(t *testing.T) {
	var now = time.Date(2024, 3, 1, 12, 0, 5, 400_000_000, time.UTC)

	var tests = []struct {
		name   string
		second int
		ok     bool
		want   time.Time
	}{
		{"previous minute", 58, true, time.Date(2024, 3, 1, 11, 59, 58, 0, time.UTC)},
		{"this minute", 3, true, time.Date(2024, 3, 1, 12, 0, 3, 0, time.UTC)},
		{"same second", 5, true, time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)},
		{"not available", 60, true, time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)},
		{"out of range", 61, true, time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)},
		{"absent", 10, false, time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want.Unix(), ReconstructTimestamp(now, tt.second, tt.ok))
		})
	}
}

func TestReconstructTimestamp_WithinLastMinute(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var now = time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "now"), 0).UTC()
		var second = rapid.IntRange(0, 59).Draw(t, "second")

		var ts = ReconstructTimestamp(now, second, true)

		assert.LessOrEqual(t, ts, now.Unix())
		assert.Greater(t, ts, now.Unix()-60)
		assert.Equal(t, second, time.Unix(ts, 0).UTC().Second())
	})
}

func TestSecondOfMinute(t *testing.T) {
	var p = newPositionReport(Header{Type: 1}) //nolint:exhaustruct
	p.Second = 42

	var s, ok = SecondOfMinute(p)
	assert.True(t, ok)
	assert.Equal(t, 42, s)

	var five = newPositionReport(Header{Type: 5}) //nolint:exhaustruct
	_, ok = SecondOfMinute(five)
	assert.False(t, ok)

	_, ok = SecondOfMinute(&AidToNavigation{Second: 7}) //nolint:exhaustruct
	assert.True(t, ok)

	_, ok = SecondOfMinute(&BinaryMessage{}) //nolint:exhaustruct
	assert.False(t, ok)
}
