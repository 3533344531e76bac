package plist

import (
	"bytes"
	"io"
)

// A Decoder reads a property list from an input stream.
type Decoder struct {
	// the format of the most-recently-decoded property list
	Format int

	reader io.Reader
}

// NewDecoder returns a Decoder that reads from r. The whole stream is read
// into memory before parsing, since binary property lists are addressed by
// offset.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{Format: InvalidFormat, reader: r}
}

// DecodeValue reads the next property list and returns its root value.
// Input starting with "bplist" is parsed as binary, anything else as XML.
func (p *Decoder) DecodeValue() (Value, error) {
	data, err := io.ReadAll(p.reader)
	if err != nil {
		return nil, err
	}
	p.Format = InvalidFormat
	if bytes.HasPrefix(data, []byte(bplistMagic)) {
		pval, err := DecodeBinary(data)
		if err != nil {
			// Had a bplist header, but still got an error: we have to die here.
			return nil, err
		}
		p.Format = BinaryFormat
		return pval, nil
	}
	pval, err := DecodeXML(string(data))
	if err != nil {
		return nil, err
	}
	p.Format = XMLFormat
	return pval, nil
}

// Decode works like Unmarshal, except it reads the decoder stream to find
// property list elements.
//
// After Decoding, the Decoder's Format field will be set to one of the plist
// format constants.
func (p *Decoder) Decode(v interface{}) error {
	pval, err := p.DecodeValue()
	if err != nil {
		return err
	}
	return Into(pval, v)
}

// Unmarshal parses a property list document and stores the result in the
// value pointed to by v, using the inverse of the mapping described at
// ValueOf. Into an empty interface it stores the result of ToGo.
//
// Unmarshal returns the detected property list format and an error, if any.
func Unmarshal(data []byte, v interface{}) (format int, err error) {
	dec := NewDecoder(bytes.NewReader(data))
	err = dec.Decode(v)
	format = dec.Format
	return
}
