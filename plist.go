package plist

import (
	"bytes"
	"reflect"
	"strings"
)

// Property list formats.
const (
	InvalidFormat int = iota
	XMLFormat
	BinaryFormat
)

// FormatNames maps each format constant to a printable name.
var FormatNames = map[int]string{
	InvalidFormat: "unknown/invalid",
	XMLFormat:     "XML",
	BinaryFormat:  "Binary",
}

// EncodeXML renders v as a single-line XML property list.
func EncodeXML(v Value) (string, error) {
	var b strings.Builder
	if err := newXMLPlistGenerator(&b).generateDocument(v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// DecodeXML parses an XML property list.
func DecodeXML(text string) (Value, error) {
	content, err := decodePlistContent(text)
	if err != nil {
		return nil, err
	}
	return newXMLPlistParser(content).decodeTags()
}

// EncodeBinary renders v as a bplist00 document. Repeated primitives, and
// containers that appear more than once, are stored a single time.
func EncodeBinary(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := newBplistGenerator(&buf).generateDocument(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBinary parses a bplist00 document. Objects referenced more than
// once decode to the same Value, so shared containers stay shared.
func DecodeBinary(data []byte) (Value, error) {
	return newBplistParser(data).parseDocument()
}

// MakeUID builds a UID from an integer (stored big-endian in 1, 2, 4 or 8
// bytes), a string (its bytes) or a byte slice.
func MakeUID(from interface{}) (UID, error) {
	switch v := from.(type) {
	case UID:
		return makeUIDBytes(v)
	case Data:
		return makeUIDBytes(v)
	case []byte:
		return makeUIDBytes(v)
	case String:
		return makeUIDBytes([]byte(v))
	case string:
		return makeUIDBytes([]byte(v))
	case Integer:
		if v.Negative() {
			return nil, ErrInvalidArgument
		}
		width := uintWidth(v.value)
		if width > 8 {
			width = 8
		}
		// width is 1, 2, 4 or 8 here.
		b, _ := appendFixedInt(make([]byte, 0, width), v.value, width)
		return UID(b), nil
	}
	rv := reflect.ValueOf(from)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return MakeUID(Int(rv.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return MakeUID(Uint(rv.Uint()))
	}
	return nil, ErrInvalidArgument
}

func makeUIDBytes(b []byte) (UID, error) {
	if len(b) == 0 {
		return nil, ErrInvalidArgument
	}
	return UID(append([]byte(nil), b...)), nil
}
