package aisverify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// Helpers for building payloads in tests, here and in cmd/.

// AidToNavigationFields is what BuildAidToNavigation puts on the air.
type AidToNavigationFields struct {
	MMSI    uint32
	AidType int
	Name    string // Over 20 characters goes into the name extension.
	Lat     float64
	Lon     float64
	Second  int
	Virtual bool
}

func appendHeader(b *Bits, msgType int, mmsi uint32) {
	b.AppendUint(uint64(msgType), 6) //nolint:gosec
	b.AppendUint(0, 2)
	b.AppendUint(uint64(mmsi), 30)
}

func appendPosition(b *Bits, lat float64, lon float64) {
	b.AppendInt(int64(math.Round(lon*600000)), 28)
	b.AppendInt(int64(math.Round(lat*600000)), 27)
}

// BuildAidToNavigation produces a type 21 payload.
func BuildAidToNavigation(f AidToNavigationFields) Bits {
	var b Bits
	appendHeader(&b, 21, f.MMSI)
	b.AppendUint(uint64(f.AidType), 5) //nolint:gosec

	var name, ext = f.Name, ""
	if len(name) > 20 {
		name, ext = f.Name[:20], f.Name[20:]
	}
	b.AppendString6(name, 20)

	b.AppendBool(true) // accuracy
	appendPosition(&b, f.Lat, f.Lon)
	b.AppendUint(10, 9) // to bow
	b.AppendUint(10, 9) // to stern
	b.AppendUint(2, 6)  // to port
	b.AppendUint(2, 6)  // to starboard
	b.AppendUint(1, 4)  // EPFD GPS

	b.AppendUint(uint64(f.Second), 6) //nolint:gosec

	b.AppendBool(false) // off position
	b.AppendUint(0, 8)  // regional
	b.AppendBool(false) // RAIM
	b.AppendBool(f.Virtual)
	b.AppendBool(false) // assigned
	b.AppendBool(false) // spare

	if ext != "" {
		b.AppendString6(ext, len(ext))
	}

	return b
}

// BuildPositionReport produces a type 1 payload.
func BuildPositionReport(mmsi uint32, lat float64, lon float64, second int) Bits {
	var b Bits
	appendHeader(&b, 1, mmsi)
	b.AppendUint(0, 4)    // under way using engine
	b.AppendInt(0, 8)     // rate of turn
	b.AppendUint(123, 10) // 12.3 knots
	b.AppendBool(true)
	appendPosition(&b, lat, lon)
	b.AppendUint(900, 12) // 90.0 degrees
	b.AppendUint(90, 9)
	b.AppendUint(uint64(second), 6) //nolint:gosec
	b.AppendUint(0, 2)
	b.AppendUint(0, 3)
	b.AppendBool(false)
	b.AppendUint(0, 19)

	return b
}

// BuildSignature produces a type 6 or 8 payload carrying a 64 byte
// signature, plus 2 framing bits when framed.
func BuildSignature(msgType int, mmsi uint32, sig []byte, framed bool) Bits {
	var b Bits
	appendHeader(&b, msgType, mmsi)

	if msgType == 6 {
		b.AppendUint(0, 2)        // sequence
		b.AppendUint(2579999, 30) // destination
		b.AppendBool(false)       // retransmit
		b.AppendBool(false)       // spare
	} else {
		b.AppendUint(0, 2) // spare
	}
	b.AppendUint(235, 10) // DAC
	b.AppendUint(10, 6)   // FI

	appendSignature(&b, sig, framed)

	return b
}

// BuildVDESignature produces a VEEDM payload carrying a signature.
func BuildVDESignature(mmsi uint32, sig []byte, framed bool) Bits {
	var b Bits
	appendHeader(&b, 8, mmsi)
	b.AppendUint(0, 2)
	appendSignature(&b, sig, framed)

	return b
}

func appendSignature(b *Bits, sig []byte, framed bool) {
	for i := range SignatureBits / 8 {
		var v byte
		if i < len(sig) {
			v = sig[i]
		}
		b.AppendUint(uint64(v), 8)
	}
	if framed {
		b.AppendUint(0, 2)
	}
}

// TestSignature is 64 recognisable bytes.
func TestSignature() []byte {
	var sig = make([]byte, SignatureBits/8)
	for i := range sig {
		sig[i] = byte(i*7 + 1)
	}

	return sig
}

// MustEncode renders bits as sentences or fails the test.
func MustEncode(t *testing.T, bits Bits, tag string, seqID string) []string {
	t.Helper()

	var lines, err = EncodeSentences(bits, tag, seqID, "A", 0)
	require.NoError(t, err)

	return lines
}
