package aisverify

import "time"

// ReconstructTimestamp turns the "second of UTC minute" carried by many AIS
// reports back into an absolute time, in epoch seconds.
//
// The sender only tells us the second it sampled its position.  Put that
// second into the current minute; if that lands in the future, the sample
// was taken before the minute rolled over.  60-63 mean "not available", in
// which case the receipt time is used.
func ReconstructTimestamp(now time.Time, second int, ok bool) int64 {
	now = now.Truncate(time.Second)

	if !ok || second < 0 || second >= 60 {
		return now.Unix()
	}

	var tx = now.Add(time.Duration(second-now.Second()) * time.Second)
	if tx.After(now) {
		tx = tx.Add(-time.Minute)
	}

	return tx.Unix()
}

// SecondOfMinute extracts the time stamp field, if the message type has one.
func SecondOfMinute(m Message) (int, bool) {
	switch msg := m.(type) {
	case *PositionReport:
		switch msg.Type {
		case 1, 2, 3, 4, 18, 19:
			return msg.Second, true
		}
	case *AidToNavigation:
		return msg.Second, true
	}

	return 0, false
}
