package aisverify

import (
	"fmt"
)

// Payload characters per sentence, which keeps a full sentence well under
// the 82 character NMEA limit receivers tend to produce.
const DefaultMaxPayload = 60

const maxFragments = 9

// EncodeSentences splits bits into as many sentences as needed, each with
// its checksum.  Fill bits are only ever on the last one.
func EncodeSentences(bits Bits, tag string, seqID string, channel string, maxPayload int) ([]string, error) {
	if !isSentenceTag(tag) {
		return nil, fmt.Errorf("%w: unknown sentence tag %q", ErrParse, tag)
	}

	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}

	var armor, fill = BitsToArmor(bits)

	var count = max(1, (len(armor)+maxPayload-1)/maxPayload)
	if count > maxFragments {
		return nil, fmt.Errorf("%w: %d bits needs %d sentences", ErrFragment, bits.Len(), count)
	}

	var out = make([]string, 0, count)
	for i := range count {
		var end = min(len(armor), (i+1)*maxPayload)
		var s = Sentence{ //nolint:exhaustruct
			Tag:            tag,
			FragmentCount:  count,
			FragmentNumber: i + 1,
			SequenceID:     seqID,
			Channel:        channel,
			Payload:        armor[i*maxPayload : end],
		}
		if i == count-1 {
			s.FillBits = fill
		}
		out = append(out, s.String())
	}

	return out, nil
}
