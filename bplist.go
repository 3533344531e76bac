package plist

import (
	"bytes"
	"encoding/binary"
)

const (
	bplistMagic   = "bplist"
	bplistVersion = "00"

	bplistHeaderSize  = 8
	bplistTrailerSize = 32
)

type bplistHeader struct {
	Magic   [6]byte
	Version [2]byte
}

type bplistTrailer struct {
	Unused            [5]uint8
	SortVersion       uint8
	OffsetIntSize     uint8
	ObjectRefSize     uint8
	NumObjects        uint64
	TopObject         uint64
	OffsetTableOffset uint64
}

// Object type nibbles: the high four bits of every object's header byte.
const (
	bpTypeSingleton   uint8 = 0x0
	bpTypeInteger     uint8 = 0x1
	bpTypeReal        uint8 = 0x2
	bpTypeDate        uint8 = 0x3
	bpTypeData        uint8 = 0x4
	bpTypeASCIIString uint8 = 0x5
	bpTypeUTF16String uint8 = 0x6
	bpTypeUTF8String  uint8 = 0x7
	bpTypeUID         uint8 = 0x8
	bpTypeArray       uint8 = 0xA
	bpTypeSet         uint8 = 0xC
	bpTypeDictionary  uint8 = 0xD
)

// Singleton info values.
const (
	bpInfoNull  uint8 = 0x0
	bpInfoFalse uint8 = 0x8
	bpInfoTrue  uint8 = 0x9
)

// bpInfoExtended marks a length that does not fit the info nibble; an
// integer object with the real length follows the header byte.
const bpInfoExtended uint8 = 0xF

// readFixedStruct decodes a fixed-width big-endian record from buf.
func readFixedStruct(buf []byte, v interface{}) error {
	return binary.Read(bytes.NewReader(buf), binary.BigEndian, v)
}

// writeFixedStruct encodes a fixed-width big-endian record.
func writeFixedStruct(v interface{}) []byte {
	var buf bytes.Buffer
	buf.Grow(binary.Size(v))
	// Writing fixed-size fields to a bytes.Buffer cannot fail.
	_ = binary.Write(&buf, binary.BigEndian, v)
	return buf.Bytes()
}

func newBplistHeader() *bplistHeader {
	h := &bplistHeader{}
	copy(h.Magic[:], bplistMagic)
	copy(h.Version[:], bplistVersion)
	return h
}
