package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Parse and validate one NMEA AIS sentence.
 *
 * Description:	!AIVDM,<count>,<number>,<seqid>,<channel>,<payload>,<fill>*<cs>
 *
 *		The checksum is the XOR of every byte between '!' and '*',
 *		written as two upper case hex digits.  A VEEDM sentence has
 *		the same envelope but carries a VDE authentication payload.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	TagAIVDM = "AIVDM"
	TagVEEDM = "VEEDM"
)

// SentenceTags are the sentence families accepted for processing.
var SentenceTags = []string{TagAIVDM, TagVEEDM}

// Maximum NMEA sentence length is 82, including CR/LF, but multi-slot
// binary messages from some receivers run longer.
const NMEA_MAX_LEN = 240 //nolint:revive

const sentenceFields = 7

type Sentence struct {
	Tag            string
	FragmentCount  int
	FragmentNumber int
	SequenceID     string
	Channel        string
	Payload        string
	FillBits       int
	Checksum       byte
	Raw            string
}

// IsVDE reports whether this is a VEEDM authentication sentence.
func (s *Sentence) IsVDE() bool {
	return s.Tag == TagVEEDM
}

// String renders the sentence with a freshly computed checksum.
func (s *Sentence) String() string {
	var body = fmt.Sprintf("%s,%d,%d,%s,%s,%s,%d", s.Tag, s.FragmentCount, s.FragmentNumber, s.SequenceID, s.Channel, s.Payload, s.FillBits)

	return fmt.Sprintf("!%s*%02X", body, Checksum(body))
}

// Checksum is the NMEA XOR checksum of body, the text between '!' and '*'.
func Checksum(body string) byte {
	var cs byte
	for i := range len(body) {
		cs ^= body[i]
	}

	return cs
}

func parseError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, a...))
}

/*-------------------------------------------------------------------
 *
 * Name:        ParseSentence
 *
 * Purpose:    	Validate a raw line and split it into its fields.
 *
 * Inputs:	line	- One line of text, trailing CR/LF allowed.
 *
 * Returns:	Sentence, or an error wrapping ErrParse.
 *		Nothing else is touched so a bad line can simply be dropped.
 *
 *--------------------------------------------------------------------*/

func ParseSentence(line string) (*Sentence, error) {
	var raw = strings.TrimSpace(line)

	if len(raw) > NMEA_MAX_LEN {
		return nil, parseError("sentence too long (%d bytes)", len(raw))
	}

	if !strings.HasPrefix(raw, "!") {
		return nil, parseError("sentence does not start with '!'")
	}

	var body, checksumStr, found = strings.Cut(raw[1:], "*")
	if !found {
		return nil, parseError("missing checksum")
	}

	if len(checksumStr) != 2 || !isUpperHex(checksumStr[0]) || !isUpperHex(checksumStr[1]) {
		return nil, parseError("malformed checksum %q", checksumStr)
	}

	var expected, _ = strconv.ParseUint(checksumStr, 16, 8)
	var calculated = Checksum(body)

	if calculated != byte(expected) {
		return nil, parseError("checksum error, expected %02X but found %s", calculated, checksumStr)
	}

	var fields = strings.Split(body, ",")
	if len(fields) != sentenceFields {
		return nil, parseError("expected %d fields, found %d", sentenceFields, len(fields))
	}

	var s = &Sentence{ //nolint:exhaustruct
		Tag:        fields[0],
		SequenceID: fields[3],
		Channel:    fields[4],
		Payload:    fields[5],
		Checksum:   calculated,
		Raw:        raw,
	}

	if !isSentenceTag(s.Tag) {
		return nil, parseError("unexpected sentence tag %q", s.Tag)
	}

	var err error

	s.FragmentCount, err = strconv.Atoi(fields[1])
	if err != nil || s.FragmentCount < 1 || s.FragmentCount > 9 {
		return nil, parseError("bad fragment count %q", fields[1])
	}

	s.FragmentNumber, err = strconv.Atoi(fields[2])
	if err != nil || s.FragmentNumber < 1 || s.FragmentNumber > s.FragmentCount {
		return nil, parseError("bad fragment number %q of %d", fields[2], s.FragmentCount)
	}

	s.FillBits, err = strconv.Atoi(fields[6])
	if err != nil || s.FillBits < 0 || s.FillBits > 5 {
		return nil, parseError("bad fill bit count %q", fields[6])
	}

	if len(s.Payload) == 0 {
		return nil, parseError("payload is missing")
	}

	for i := range len(s.Payload) {
		if !isArmor(s.Payload[i]) {
			return nil, parseError("invalid character %q in payload", s.Payload[i])
		}
	}

	return s, nil
}

func isUpperHex(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'A' && ch <= 'F')
}

func isSentenceTag(tag string) bool {
	for _, t := range SentenceTags {
		if tag == t {
			return true
		}
	}

	return false
}

// SentenceStart returns the offset of the first "!<tag>," in line, or -1.
// Receivers sometimes prefix sentences with tag blocks or other noise.
func SentenceStart(line string) int {
	var best = -1
	for _, t := range SentenceTags {
		var i = strings.Index(line, "!"+t+",")
		if i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}

	return best
}
