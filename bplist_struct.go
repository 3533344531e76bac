package plist

import (
	"encoding/binary"
	"math"
	"time"
	"unicode/utf16"
)

// Seconds between the Unix epoch and the CoreFoundation epoch,
// 2001-01-01T00:00:00Z.
const appleEpoch = 978307200

// intInfo maps an integer width to the info nibble announcing it
// (width = 1 << info).
var intInfo = map[int]uint8{1: 0, 2: 1, 4: 2, 8: 3, 16: 4}

func packHeader(typ, info uint8) (byte, error) {
	if typ > 0xF {
		return 0, OutOfRangeError{Name: "type", Value: uint64(typ), Max: 0xF}
	}
	if info > 0xF {
		return 0, OutOfRangeError{Name: "info", Value: uint64(info), Max: 0xF}
	}
	return typ<<4 | info, nil
}

func unpackHeader(b byte) (typ, info uint8) {
	return b >> 4, b & 0xF
}

// header is packHeader for nibbles the caller has already bounded.
func header(typ, info uint8) byte {
	b, err := packHeader(typ, info)
	if err != nil {
		panic(err)
	}
	return b
}

func encodeInt(n Integer) []byte {
	return encodeTypedInt(bpTypeInteger, n)
}

func encodeTypedInt(typ uint8, n Integer) []byte {
	width := intWidth(n)
	buf := []byte{header(typ, intInfo[width])}
	// width comes from intWidth, so appendFixedInt cannot fail.
	buf, _ = appendFixedInt(buf, n.value, width)
	return buf
}

func decodeInt(buf []byte, info uint8, offset int) (Integer, error) {
	if info > 4 {
		return Integer{}, SizeError{Size: 1 << info}
	}
	width := 1 << info
	v, err := readFixedInt(buf, width, offset)
	if err != nil {
		return Integer{}, err
	}
	if width == 8 {
		return Int(int64(v)), nil
	}
	return Uint(v), nil
}

func encodeReal(f float64) []byte {
	return encodeTypedReal(bpTypeReal, f)
}

func encodeTypedReal(typ uint8, f float64) []byte {
	buf := make([]byte, 9)
	buf[0] = header(typ, 3)
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(f))
	return buf
}

// decodeReal reads an 8-byte real, or a 4-byte one when info is 2.
func decodeReal(buf []byte, info uint8, offset int) (float64, error) {
	switch info {
	case 2:
		if err := checkBounds(buf, offset, 4); err != nil {
			return 0, err
		}
		return float64(math.Float32frombits(binary.BigEndian.Uint32(buf[offset:]))), nil
	case 3:
		if err := checkBounds(buf, offset, 8); err != nil {
			return 0, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(buf[offset:])), nil
	}
	return 0, SizeError{Size: 1 << info}
}

// appleSeconds converts t to seconds since the CoreFoundation epoch.
func appleSeconds(t time.Time) float64 {
	return float64(t.Unix()-appleEpoch) + float64(t.Nanosecond())/float64(time.Second)
}

func fromAppleSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec)+appleEpoch, int64(math.Round(frac*float64(time.Second)))).UTC()
}

func encodeDate(d Date) []byte {
	return encodeTypedReal(bpTypeDate, appleSeconds(time.Time(d)))
}

func decodeDate(buf []byte, offset int) (Date, error) {
	s, err := decodeReal(buf, 3, offset)
	if err != nil {
		return Date{}, err
	}
	return Date(fromAppleSeconds(s)), nil
}

func encodeUID(u UID) ([]byte, error) {
	if len(u) == 0 {
		return nil, ErrInvalidArgument
	}
	info := len(u) - 1
	if info > 0xF {
		info = 0xF
	}
	buf := []byte{header(bpTypeUID, uint8(info))}
	if len(u) > 0xF {
		buf = append(buf, encodeInt(Uint(uint64(len(u))))...)
	}
	return append(buf, u...), nil
}

func decodeUID(buf []byte, info uint8, offset int) (UID, error) {
	n := uint64(info) + 1
	start := offset
	if info == bpInfoExtended {
		var err error
		n, start, err = decodeLength(buf, offset)
		if err != nil {
			return nil, err
		}
	}
	b, err := sliceAt(buf, start, n)
	if err != nil {
		return nil, err
	}
	return UID(b), nil
}

// decodeLength reads the integer object that follows a header whose info
// nibble is 0xF. It returns the length and the offset just past it.
func decodeLength(buf []byte, offset int) (uint64, int, error) {
	if err := checkBounds(buf, offset, 1); err != nil {
		return 0, 0, err
	}
	typ, info := unpackHeader(buf[offset])
	if typ != bpTypeInteger {
		return 0, 0, binaryError(int64(offset), "length marker 0x%02x is not an integer", buf[offset])
	}
	n, err := decodeInt(buf, info, offset+1)
	if err != nil {
		return 0, 0, err
	}
	if n.Negative() {
		return 0, 0, binaryError(int64(offset), "negative length %s", n)
	}
	if err := checkSafeInteger(n.value, "length"); err != nil {
		return 0, 0, err
	}
	return n.value, offset + 1 + 1<<info, nil
}

// decodeCount returns the element count announced by info and the offset
// at which the elements start.
func decodeCount(buf []byte, info uint8, offset int) (uint64, int, error) {
	if info < bpInfoExtended {
		return uint64(info), offset, nil
	}
	return decodeLength(buf, offset)
}

func sliceAt(buf []byte, offset int, n uint64) ([]byte, error) {
	if err := checkSafeInteger(n, "size"); err != nil {
		return nil, err
	}
	if int(n) < 0 || uint64(int(n)) != n {
		return nil, OutOfRangeError{Name: "size", Value: n, Max: uint64(math.MaxInt32)}
	}
	if err := checkBounds(buf, offset, int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, buf[offset:])
	return out, nil
}

func appendLengthHeader(buf []byte, typ uint8, count uint64) []byte {
	info := uint8(bpInfoExtended)
	if count < uint64(bpInfoExtended) {
		info = uint8(count)
	}
	buf = append(buf, header(typ, info))
	if count >= uint64(bpInfoExtended) {
		buf = append(buf, encodeInt(Uint(count))...)
	}
	return buf
}

// encodeBytesWithLenHeader writes a typed buffer of len(data)/unitSize
// elements.
func encodeBytesWithLenHeader(data []byte, typ uint8, unitSize int) []byte {
	count := uint64(len(data) / unitSize)
	buf := appendLengthHeader(make([]byte, 0, len(data)+10), typ, count)
	return append(buf, data...)
}

func decodeBytesWithLenHeader(buf []byte, info uint8, offset, unitSize int) ([]byte, error) {
	count, start, err := decodeCount(buf, info, offset)
	if err != nil {
		return nil, err
	}
	if count > maxSafeInteger/uint64(unitSize) {
		return nil, OutOfRangeError{Name: "size", Value: count, Max: maxSafeInteger / uint64(unitSize)}
	}
	return sliceAt(buf, start, count*uint64(unitSize))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7F {
			return false
		}
	}
	return true
}

func encodeString(s string) []byte {
	if isASCII(s) {
		return encodeBytesWithLenHeader([]byte(s), bpTypeASCIIString, 1)
	}
	units := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(units))
	for i, u := range units {
		binary.BigEndian.PutUint16(b[2*i:], u)
	}
	return encodeBytesWithLenHeader(b, bpTypeUTF16String, 2)
}

func decodeASCIIString(buf []byte, info uint8, offset int) (String, error) {
	b, err := decodeBytesWithLenHeader(buf, info, offset, 1)
	if err != nil {
		return "", err
	}
	return String(b), nil
}

func decodeUTF16String(buf []byte, info uint8, offset int) (String, error) {
	b, err := decodeBytesWithLenHeader(buf, info, offset, 2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return String(utf16.Decode(units)), nil
}

// encodeOffsetArray writes a container header for count entries followed
// by refs, each stored in width bytes. Dictionaries pass the pair count
// with all key refs followed by all value refs.
func encodeOffsetArray(count int, typ uint8, refs []uint64, width int) ([]byte, error) {
	buf := appendLengthHeader(make([]byte, 0, 10+len(refs)*width), typ, uint64(count))
	var err error
	for _, ref := range refs {
		if buf, err = appendFixedInt(buf, ref, width); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// decodeOffsetArray reads the refs of a container whose header info is
// info. perEntry is 2 for dictionaries.
func decodeOffsetArray(buf []byte, info uint8, offset, perEntry, width int) ([]uint64, error) {
	count, start, err := decodeCount(buf, info, offset)
	if err != nil {
		return nil, err
	}
	n := count * uint64(perEntry)
	if n > uint64(len(buf)) || n*uint64(width) > uint64(len(buf)) {
		return nil, binaryError(int64(offset), "%d entries overrun the document", count)
	}
	if err := checkBounds(buf, start, int(n)*width); err != nil {
		return nil, err
	}
	refs := make([]uint64, n)
	for i := range refs {
		if refs[i], err = readFixedInt(buf, width, start+i*width); err != nil {
			return nil, err
		}
	}
	return refs, nil
}
