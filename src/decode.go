package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Decode the binary AIS payload into typed messages.
 *
 * Description:	Every message starts with
 *
 *			bits  0-5	message type
 *			bits  6-7	repeat indicator
 *			bits  8-37	MMSI
 *
 *		Only the types we need are interpreted: position and static
 *		reports, Aid-to-Navigation reports, and binary messages whose
 *		data is handed on untouched.  Don't get too carried away.
 *
 * References:	https://gpsd.gitlab.io/gpsd/AIVDM.html
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
)

// Unknown marks a numeric field which was "not available" on the air.
const Unknown = -999999.0

const (
	headerBits    = 38
	vdeDataOffset = 40
)

// Minimum lengths, in bits, for the types we decode.
var minMessageBits = map[int]int{
	1:  168,
	2:  168,
	3:  168,
	4:  168,
	5:  424,
	6:  88,
	8:  56,
	18: 168,
	19: 312,
	21: 272,
	24: 160,
}

// Message is implemented by *PositionReport, *AidToNavigation and
// *BinaryMessage.
type Message interface {
	MessageType() int
	SourceMMSI() uint32
}

type Header struct {
	Type   int
	Repeat int
	MMSI   uint32
}

func (h Header) MessageType() int {
	return h.Type
}

func (h Header) SourceMMSI() uint32 {
	return h.MMSI
}

// PositionReport covers the position and static data types 1-5, 18, 19, 24.
// Fields a type doesn't carry are left at Unknown / empty / -1.
type PositionReport struct {
	Header

	NavStatus   int
	Lat         float64
	Lon         float64
	SOG         float64 // knots
	COG         float64 // degrees
	Heading     int     // 511 = not available
	Second      int     // 60-63 = not available
	Name        string
	Callsign    string
	Destination string
	ShipType    int
	PartNumber  int // type 24 only
}

type AidToNavigation struct {
	Header

	AidType     int
	Name        string
	Accuracy    bool
	Lat         float64
	Lon         float64
	ToBow       int
	ToStern     int
	ToPort      int
	ToStarboard int
	EPFD        int
	Second      int
	OffPosition bool
	RAIM        bool
	Virtual     bool
	Assigned    bool
}

// BinaryMessage is a type 6 (addressed) or 8 (broadcast) message, or the
// payload of a VEEDM sentence.  Data is not interpreted.
type BinaryMessage struct {
	Header

	Addressed  bool
	VDE        bool
	Sequence   int
	DestMMSI   uint32
	Retransmit bool
	DAC        int
	FI         int
	Data       Bits
}

var aidTypeNames = []string{
	"Default, Type of AtoN not specified",
	"Reference point",
	"RACON",
	"Fixed structure off shore",
	"Spare, Reserved for future use",
	"Light, without sectors",
	"Light, with sectors",
	"Leading Light Front",
	"Leading Light Rear",
	"Beacon, Cardinal N",
	"Beacon, Cardinal E",
	"Beacon, Cardinal S",
	"Beacon, Cardinal W",
	"Beacon, Port hand",
	"Beacon, Starboard hand",
	"Beacon, Preferred Channel port hand",
	"Beacon, Preferred Channel starboard hand",
	"Beacon, Isolated danger",
	"Beacon, Safe water",
	"Beacon, Special mark",
	"Cardinal Mark N",
	"Cardinal Mark E",
	"Cardinal Mark S",
	"Cardinal Mark W",
	"Port hand Mark",
	"Starboard hand Mark",
	"Preferred Channel Port hand",
	"Preferred Channel Starboard hand",
	"Isolated danger",
	"Safe Water",
	"Special Mark",
	"Light Vessel / LANBY / Rigs",
}

// AidTypeName is the human readable name of an Aid-to-Navigation type code.
func AidTypeName(code int) string {
	if code >= 0 && code < len(aidTypeNames) {
		return aidTypeNames[code]
	}

	return fmt.Sprintf("Unknown (%d)", code)
}

// Describe gives a one line description of the message type.
func Describe(m Message) string {
	var t = m.MessageType()
	switch msg := m.(type) {
	case *AidToNavigation:
		return fmt.Sprintf("AIS %d: Aid-to-Navigation Report", t)
	case *BinaryMessage:
		switch {
		case msg.VDE:
			return fmt.Sprintf("VDE %d: Authentication Payload", t)
		case msg.Addressed:
			return fmt.Sprintf("AIS %d: Binary Addressed Message", t)
		default:
			return fmt.Sprintf("AIS %d: Binary Broadcast Message", t)
		}
	}

	switch t {
	case 1, 2, 3:
		return fmt.Sprintf("AIS %d: Position Report Class A", t)
	case 4:
		return fmt.Sprintf("AIS %d: Base Station Report", t)
	case 5:
		return fmt.Sprintf("AIS %d: Static and Voyage Related Data", t)
	case 18:
		return fmt.Sprintf("AIS %d: Standard Class B CS Position Report", t)
	case 19:
		return fmt.Sprintf("AIS %d: Extended Class B CS Position Report", t)
	case 24:
		return fmt.Sprintf("AIS %d: Static Data Report", t)
	default:
		return fmt.Sprintf("AIS message type %d", t)
	}
}

func decodeError(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, a...))
}

/*-------------------------------------------------------------------
 *
 * Name:        Decode
 *
 * Purpose:    	Interpret a reassembled payload.
 *
 * Inputs:	bits	- Payload with fill bits already removed.
 *
 *		vde	- Payload came from VEEDM sentences.
 *
 * Returns:	Message, or an error wrapping ErrDecode for an
 *		unsupported type or a payload too short for its layout.
 *
 *--------------------------------------------------------------------*/

func Decode(bits Bits, vde bool) (Message, error) {
	if bits.Len() < headerBits {
		return nil, decodeError("payload has only %d bits", bits.Len())
	}

	var h = Header{
		Type:   int(bits.Uint(0, 6)),     //nolint:gosec // G115 six bits
		Repeat: int(bits.Uint(6, 2)),     //nolint:gosec // G115 two bits
		MMSI:   uint32(bits.Uint(8, 30)), //nolint:gosec // G115 thirty bits
	}

	if vde {
		if bits.Len() < vdeDataOffset {
			return nil, decodeError("VDE payload has only %d bits", bits.Len())
		}

		return &BinaryMessage{Header: h, VDE: true, Data: bits.Slice(vdeDataOffset, bits.Len())}, nil //nolint:exhaustruct
	}

	var minBits, supported = minMessageBits[h.Type]
	if !supported {
		return nil, decodeError("unsupported message type %d", h.Type)
	}

	if bits.Len() < minBits {
		return nil, decodeError("type %d has %d bits when at least %d expected", h.Type, bits.Len(), minBits)
	}

	switch h.Type {
	case 1, 2, 3: // Position Report Class A
		var p = newPositionReport(h)
		p.NavStatus = int(bits.Uint(38, 4)) //nolint:gosec
		p.SOG = speed(bits, 50, 10)
		p.Lon = longitude(bits, 61, 28)
		p.Lat = latitude(bits, 89, 27)
		p.COG = course(bits, 116, 12)
		p.Heading = int(bits.Uint(128, 9)) //nolint:gosec
		p.Second = int(bits.Uint(137, 6))  //nolint:gosec

		return p, nil

	case 4: // Base Station Report
		var p = newPositionReport(h)
		p.Second = int(bits.Uint(72, 6)) //nolint:gosec
		p.Lon = longitude(bits, 79, 28)
		p.Lat = latitude(bits, 107, 27)

		return p, nil

	case 5: // Static and Voyage Related Data
		var p = newPositionReport(h)
		p.Callsign = bits.String6(70, 42)
		p.Name = bits.String6(112, 120)
		p.ShipType = int(bits.Uint(232, 8)) //nolint:gosec
		p.Destination = bits.String6(302, 120)

		return p, nil

	case 18: // Standard Class B CS Position Report
		var p = newPositionReport(h)
		p.SOG = speed(bits, 46, 10)
		p.Lon = longitude(bits, 57, 28)
		p.Lat = latitude(bits, 85, 27)
		p.COG = course(bits, 112, 12)
		p.Heading = int(bits.Uint(124, 9)) //nolint:gosec
		p.Second = int(bits.Uint(133, 6))  //nolint:gosec

		return p, nil

	case 19: // Extended Class B CS Position Report
		var p = newPositionReport(h)
		p.SOG = speed(bits, 46, 10)
		p.Lon = longitude(bits, 57, 28)
		p.Lat = latitude(bits, 85, 27)
		p.COG = course(bits, 112, 12)
		p.Heading = int(bits.Uint(124, 9)) //nolint:gosec
		p.Second = int(bits.Uint(133, 6))  //nolint:gosec
		p.Name = bits.String6(143, 120)
		p.ShipType = int(bits.Uint(263, 8)) //nolint:gosec

		return p, nil

	case 24: // Static Data Report, part A or B
		var p = newPositionReport(h)
		p.PartNumber = int(bits.Uint(38, 2)) //nolint:gosec
		if p.PartNumber == 0 {
			p.Name = bits.String6(40, 120)
		} else {
			if bits.Len() < 168 {
				return nil, decodeError("type 24 part B has %d bits when 168 expected", bits.Len())
			}
			p.ShipType = int(bits.Uint(40, 8)) //nolint:gosec
			p.Callsign = bits.String6(90, 42)
		}

		return p, nil

	case 21:
		return decodeAidToNavigation(h, bits), nil

	case 6: // Binary Addressed Message
		return &BinaryMessage{ //nolint:exhaustruct
			Header:     h,
			Addressed:  true,
			Sequence:   int(bits.Uint(38, 2)),     //nolint:gosec
			DestMMSI:   uint32(bits.Uint(40, 30)), //nolint:gosec
			Retransmit: bits.Bool(70),
			DAC:        int(bits.Uint(72, 10)), //nolint:gosec
			FI:         int(bits.Uint(82, 6)),  //nolint:gosec
			Data:       bits.Slice(88, bits.Len()),
		}, nil

	case 8: // Binary Broadcast Message
		return &BinaryMessage{ //nolint:exhaustruct
			Header: h,
			DAC:    int(bits.Uint(40, 10)), //nolint:gosec
			FI:     int(bits.Uint(50, 6)),  //nolint:gosec
			Data:   bits.Slice(56, bits.Len()),
		}, nil
	}

	return nil, decodeError("unsupported message type %d", h.Type)
}

func newPositionReport(h Header) *PositionReport {
	return &PositionReport{
		Header:     h,
		NavStatus:  -1,
		Lat:        Unknown,
		Lon:        Unknown,
		SOG:        Unknown,
		COG:        Unknown,
		Heading:    511,
		Second:     60,
		ShipType:   -1,
		PartNumber: -1,
	}
}

// Type 21.  The name may continue past bit 272 in up to 14 more characters.
func decodeAidToNavigation(h Header, bits Bits) *AidToNavigation {
	var a = &AidToNavigation{
		Header:      h,
		AidType:     int(bits.Uint(38, 5)), //nolint:gosec
		Name:        bits.String6(43, 120),
		Accuracy:    bits.Bool(163),
		Lon:         longitude(bits, 164, 28),
		Lat:         latitude(bits, 192, 27),
		ToBow:       int(bits.Uint(219, 9)), //nolint:gosec
		ToStern:     int(bits.Uint(228, 9)), //nolint:gosec
		ToPort:      int(bits.Uint(237, 6)), //nolint:gosec
		ToStarboard: int(bits.Uint(243, 6)), //nolint:gosec
		EPFD:        int(bits.Uint(249, 4)), //nolint:gosec
		Second:      int(bits.Uint(253, 6)), //nolint:gosec
		OffPosition: bits.Bool(259),
		RAIM:        bits.Bool(268),
		Virtual:     bits.Bool(269),
		Assigned:    bits.Bool(270),
	}

	if ext := bits.Len() - 272; ext >= 6 {
		if ext > 84 {
			ext = 84
		}
		a.Name += bits.String6(272, ext-ext%6)
	}

	return a
}

// Latitude of 0x3412140 (91 deg) means not available.
func latitude(bits Bits, start int, length int) float64 {
	var n = bits.Int(start, length)
	if n == 91*600000 {
		return Unknown
	}

	return float64(n) / 600000.0
}

// Longitude of 0x6791AC0 (181 deg) means not available.
func longitude(bits Bits, start int, length int) float64 {
	var n = bits.Int(start, length)
	if n == 181*600000 {
		return Unknown
	}

	return float64(n) / 600000.0
}

// Raw 1023 means not available.  Multiply by 0.1 to get knots.
func speed(bits Bits, start int, length int) float64 {
	var n = bits.Uint(start, length)
	if n == 1023 {
		return Unknown
	}

	return float64(n) * 0.1
}

// Raw 3600 means not available.  Multiply by 0.1 to get degrees.
func course(bits Bits, start int, length int) float64 {
	var n = bits.Uint(start, length)
	if n == 3600 {
		return Unknown
	}

	return float64(n) * 0.1
}
