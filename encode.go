package plist

import (
	"bytes"
	"fmt"
	"io"
)

type generator interface {
	generateDocument(Value) error
}

// An Encoder writes a property list to an output stream.
type Encoder struct {
	writer io.Writer
	format int

	indent string
}

// NewEncoder returns an Encoder that writes an XML property list to w.
func NewEncoder(w io.Writer) *Encoder {
	return NewEncoderForFormat(w, XMLFormat)
}

// NewEncoderForFormat returns an Encoder that writes a property list to w
// in the specified format.
func NewEncoderForFormat(w io.Writer, format int) *Encoder {
	return &Encoder{
		writer: w,
		format: format,
	}
}

// Indent turns on pretty-printing for the XML format. Each element begins
// on a new line, indented by one or more copies of indent according to its
// nesting depth. Binary output ignores it.
func (p *Encoder) Indent(indent string) {
	p.indent = indent
}

// Encode writes the property list encoding of v to the stream. v is
// converted with ValueOf first.
func (p *Encoder) Encode(v interface{}) error {
	pval, err := ValueOf(v)
	if err != nil {
		return err
	}

	var g generator
	switch p.format {
	case XMLFormat:
		x := newXMLPlistGenerator(p.writer)
		x.Indent(p.indent)
		g = x
	case BinaryFormat:
		g = newBplistGenerator(p.writer)
	default:
		return fmt.Errorf("%w: unknown format %d", ErrInvalidArgument, p.format)
	}
	return g.generateDocument(pval)
}

// Marshal returns the property list encoding of v in the specified format.
func Marshal(v interface{}, format int) ([]byte, error) {
	return MarshalIndent(v, format, "")
}

// MarshalIndent works like Marshal, but each XML element begins on a new
// line indented by indent.
func MarshalIndent(v interface{}, format int, indent string) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := NewEncoderForFormat(buf, format)
	enc.Indent(indent)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
