package aisverify

/*------------------------------------------------------------------
 *
 * Purpose:	Bit vectors and the 6 bit "payload armoring" used to carry
 *		AIS binary messages inside NMEA sentences.
 *
 * References:	AIVDM/AIVDO protocol decoding by Eric S. Raymond
 *		https://gpsd.gitlab.io/gpsd/AIVDM.html
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"
)

// Bits is a packed, MSB first, bit vector with an explicit length.
type Bits struct {
	data []byte
	n    int
}

var mask = []byte{0x80, 0x40, 0x20, 0x10, 0x08, 0x04, 0x02, 0x01}

// NewBits returns a zeroed vector of n bits.
func NewBits(n int) Bits {
	return Bits{data: make([]byte, (n+7)/8), n: n}
}

// BitsFromBytes wraps b, using only the first n bits.
func BitsFromBytes(b []byte, n int) Bits {
	if n > len(b)*8 {
		n = len(b) * 8
	}

	var data = make([]byte, (n+7)/8)
	copy(data, b)

	var out = Bits{data: data, n: n}
	out.clearTail()

	return out
}

func (b Bits) Len() int {
	return b.n
}

func (b Bits) Bit(offset int) bool {
	return (b.data[offset>>3] & mask[offset&0x7]) != 0
}

func (b *Bits) SetBit(offset int, val bool) {
	if val {
		b.data[offset>>3] |= mask[offset&0x7]
	} else {
		b.data[offset>>3] &= ^mask[offset&0x7]
	}
}

// Uint extracts an unsigned field.  Bits past the end read as zero.
func (b Bits) Uint(start int, length int) uint64 {
	var result uint64
	for k := range length {
		result <<= 1
		if start+k < b.n && b.Bit(start+k) {
			result |= 1
		}
	}

	return result
}

// Int extracts a two's complement field.
func (b Bits) Int(start int, length int) int64 {
	var result = int64(b.Uint(start, length)) //nolint:gosec // G115 length <= 64
	// Sign extend.
	result <<= (64 - length)
	result >>= (64 - length)

	return result
}

func (b Bits) Bool(start int) bool {
	return b.Uint(start, 1) == 1
}

// String6 extracts length/6 characters of AIS six bit ASCII.
// Officially it should be padded with @ but we also see trailing spaces.
func (b Bits) String6(start int, length int) string {
	var sb strings.Builder
	for i := 0; i+6 <= length; i += 6 {
		var ch = b.Uint(start+i, 6)
		if ch < 32 {
			ch += 64
		}
		sb.WriteByte(byte(ch))
	}

	return strings.TrimRight(sb.String(), "@ ")
}

// Slice copies bits [start, end).
func (b Bits) Slice(start int, end int) Bits {
	if end > b.n {
		end = b.n
	}
	if start > end {
		start = end
	}

	var out = NewBits(end - start)
	for k := start; k < end; k++ {
		out.SetBit(k-start, b.Bit(k))
	}

	return out
}

// Bytes packs the vector MSB first, zero padding the final byte.
func (b Bits) Bytes() []byte {
	var out = make([]byte, len(b.data))
	copy(out, b.data)

	return out
}

// AppendUint appends the low length bits of val.
func (b *Bits) AppendUint(val uint64, length int) {
	var start = b.n
	b.grow(length)
	for k := range length {
		b.SetBit(start+k, (val>>(length-1-k))&1 != 0)
	}
}

func (b *Bits) AppendInt(val int64, length int) {
	b.AppendUint(uint64(val), length) //nolint:gosec // G115 two's complement intended
}

func (b *Bits) AppendBool(val bool) {
	if val {
		b.AppendUint(1, 1)
	} else {
		b.AppendUint(0, 1)
	}
}

// AppendString6 appends s as exactly nchars six bit characters, @ padded.
func (b *Bits) AppendString6(s string, nchars int) {
	s = strings.ToUpper(s)
	for i := range nchars {
		var ch byte = '@'
		if i < len(s) {
			ch = s[i]
		}
		if ch >= 64 {
			ch -= 64
		}
		b.AppendUint(uint64(ch&0x3f), 6)
	}
}

func (b Bits) Equal(o Bits) bool {
	if b.n != o.n {
		return false
	}
	for k := range b.n {
		if b.Bit(k) != o.Bit(k) {
			return false
		}
	}

	return true
}

// "0101..." representation, handy in test failure output.
func (b Bits) String() string {
	var sb strings.Builder
	for k := range b.n {
		if b.Bit(k) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}

	return sb.String()
}

func (b *Bits) grow(length int) {
	b.n += length
	for len(b.data) < (b.n+7)/8 {
		b.data = append(b.data, 0)
	}
}

func (b *Bits) clearTail() {
	for k := b.n; k < len(b.data)*8; k++ {
		b.SetBit(k, false)
	}
}

/*-------------------------------------------------------------------
 *
 * Convert between 6 bit values and printable characters used in
 * in the AIS NMEA sentences.
 *
 *--------------------------------------------------------------------*/

// Characters '0' thru 'W'  become values 0 thru 39.
// Characters '`' thru 'w'  become values 40 thru 63.

func charToSextet(ch byte) (int, bool) {
	if ch >= '0' && ch <= 'W' {
		return int(ch - '0'), true
	} else if ch >= '`' && ch <= 'w' {
		return int(ch - '`' + 40), true
	}

	return 0, false
}

// Values 0 thru 39 become characters '0' thru 'W'.
// Values 40 thru 63 become characters '`' thru 'w'.

func sextetToChar(val int) byte {
	if val <= 39 {
		return byte('0' + val)
	}

	return byte('`' + val - 40)
}

func isArmor(ch byte) bool {
	var _, ok = charToSextet(ch)

	return ok
}

// ArmorToBits converts payload armor to bits, dropping fill bits from the
// tail of the final sextet.
func ArmorToBits(payload string, fill int) (Bits, error) {
	if fill < 0 || fill > 5 {
		return Bits{}, fmt.Errorf("%w: fill bits %d out of range", ErrDecode, fill)
	}

	var total = len(payload)*6 - fill
	if total < 0 {
		return Bits{}, fmt.Errorf("%w: %d fill bits but only %d payload bits", ErrDecode, fill, len(payload)*6)
	}

	var bits = NewBits(len(payload) * 6)
	for i := range len(payload) {
		var v, ok = charToSextet(payload[i])
		if !ok {
			return Bits{}, fmt.Errorf("%w: invalid armor character %q", ErrDecode, payload[i])
		}
		for k := range 6 {
			bits.SetBit(i*6+k, (v>>(5-k))&1 != 0)
		}
	}

	return bits.Slice(0, total), nil
}

// BitsToArmor is the inverse of ArmorToBits.  Returns the armor and the number
// of fill bits added to complete the last character.
func BitsToArmor(bits Bits) (string, int) {
	var ns = (bits.Len() + 5) / 6
	var sb strings.Builder
	for k := range ns {
		sb.WriteByte(sextetToChar(int(bits.Uint(k*6, 6)))) //nolint:gosec // G115 six bits
	}

	return sb.String(), ns*6 - bits.Len()
}
