package plist

import (
	"fmt"
)

type perror string

func (e perror) Error() string {
	return string(e)
}

const (
	// ErrInvalidArgument is reported for arguments no encoding exists for,
	// such as an empty UID.
	ErrInvalidArgument = perror("plist: invalid argument")

	// ErrOutOfRange is reported when a number does not fit the field it is
	// headed for: header nibbles above 15, sizes beyond 2^53-1.
	ErrOutOfRange = perror("plist: value out of range")

	// ErrUnsupportedSize is reported for fixed-width integer fields whose
	// width is not 1, 2, 4, 8 or 16 bytes.
	ErrUnsupportedSize = perror("plist: unsupported integer size")
)

// maxSafeInteger is the largest size or offset accepted from a document.
const maxSafeInteger = 1<<53 - 1

// OutOfRangeError carries the name and value of a number that failed a
// range check.
type OutOfRangeError struct {
	Name  string
	Value uint64
	Max   uint64
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %s %d exceeds %d", ErrOutOfRange, e.Name, e.Value, e.Max)
}

func (e OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// SizeError reports an integer field width that cannot be read or written.
type SizeError struct {
	Size int
}

func (e SizeError) Error() string {
	return fmt.Sprintf("%s (%d bytes)", ErrUnsupportedSize, e.Size)
}

func (e SizeError) Is(target error) bool {
	return target == ErrUnsupportedSize
}

// FormatError reports input that is not a property list of a supported
// format at all: wrong bplist magic or version, or a missing <plist>
// envelope.
type FormatError struct {
	Format string
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("plist: invalid %s property list: %s", e.Format, e.Msg)
}

// BinaryParsingError reports a malformed binary property list, or a value
// that cannot be written as one.
type BinaryParsingError struct {
	Offset int64 // byte offset of the offending object, -1 when unknown
	Msg    string
	Err    error
}

func (e *BinaryParsingError) Error() string {
	s := "plist: binary: " + e.Msg
	if e.Offset >= 0 {
		s += fmt.Sprintf(" (at 0x%x)", e.Offset)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *BinaryParsingError) Unwrap() error {
	return e.Err
}

// XMLParsingError reports a malformed XML property list, or a value that
// cannot be written as one.
type XMLParsingError struct {
	Tag      string // offending tag, if any
	Expected string // expected tag, for mismatches
	Msg      string
	Err      error
}

func (e *XMLParsingError) Error() string {
	s := "plist: XML: " + e.Msg
	switch {
	case e.Expected != "":
		s += fmt.Sprintf(" (expected </%s>, got <%s>)", e.Expected, e.Tag)
	case e.Tag != "":
		s += fmt.Sprintf(" (<%s>)", e.Tag)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *XMLParsingError) Unwrap() error {
	return e.Err
}

func binaryError(off int64, format string, args ...interface{}) *BinaryParsingError {
	return &BinaryParsingError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func xmlError(tag string, format string, args ...interface{}) *XMLParsingError {
	return &XMLParsingError{Tag: tag, Msg: fmt.Sprintf(format, args...)}
}
