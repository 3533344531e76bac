package plist

import (
	"encoding/binary"
	"math"
)

// uintWidth returns the smallest bplist integer width, in bytes, that holds n.
// Values above math.MaxInt64 need the 16-byte form: 8-byte integers are
// always signed in bplist00.
func uintWidth(n uint64) int {
	switch {
	case n <= math.MaxUint8:
		return 1
	case n <= math.MaxUint16:
		return 2
	case n <= math.MaxUint32:
		return 4
	case n <= math.MaxInt64:
		return 8
	default:
		return 16
	}
}

// intWidth is uintWidth for Integer. Negative numbers are always written
// as 8-byte two's complement.
func intWidth(i Integer) int {
	if i.signed {
		return 8
	}
	return uintWidth(i.value)
}

func validWidth(width int) bool {
	switch width {
	case 1, 2, 4, 8, 16:
		return true
	}
	return false
}

func checkSafeInteger(n uint64, name string) error {
	if n > maxSafeInteger {
		return OutOfRangeError{Name: name, Value: n, Max: maxSafeInteger}
	}
	return nil
}

func checkBounds(buf []byte, offset, n int) error {
	if offset < 0 || n < 0 || offset > len(buf) || len(buf)-offset < n {
		return binaryError(int64(offset), "%d byte read past end of %d byte buffer", n, len(buf))
	}
	return nil
}

// writeFixedInt stores value big-endian in width bytes at buf[offset:].
// A 16-byte field zeroes its high half and stores value in the low half.
func writeFixedInt(buf []byte, value uint64, width, offset int) error {
	if !validWidth(width) {
		return SizeError{Size: width}
	}
	if err := checkBounds(buf, offset, width); err != nil {
		return err
	}
	b := buf[offset:]
	switch width {
	case 1:
		b[0] = uint8(value)
	case 2:
		binary.BigEndian.PutUint16(b, uint16(value))
	case 4:
		binary.BigEndian.PutUint32(b, uint32(value))
	case 8:
		binary.BigEndian.PutUint64(b, value)
	case 16:
		binary.BigEndian.PutUint64(b, 0)
		binary.BigEndian.PutUint64(b[8:], value)
	}
	return nil
}

// readFixedInt is the inverse of writeFixedInt. The high half of a 16-byte
// field is skipped.
func readFixedInt(buf []byte, width, offset int) (uint64, error) {
	if !validWidth(width) {
		return 0, SizeError{Size: width}
	}
	if err := checkBounds(buf, offset, width); err != nil {
		return 0, err
	}
	b := buf[offset:]
	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(binary.BigEndian.Uint16(b)), nil
	case 4:
		return uint64(binary.BigEndian.Uint32(b)), nil
	case 8:
		return binary.BigEndian.Uint64(b), nil
	}
	return binary.BigEndian.Uint64(b[8:]), nil
}

// appendFixedInt is writeFixedInt for a growing buffer.
func appendFixedInt(buf []byte, value uint64, width int) ([]byte, error) {
	if !validWidth(width) {
		return buf, SizeError{Size: width}
	}
	n := len(buf)
	buf = append(buf, make([]byte, width)...)
	if err := writeFixedInt(buf, value, width, n); err != nil {
		return buf[:n], err
	}
	return buf, nil
}
