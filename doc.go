// Package plist reads and writes Apple property lists in the XML and
// binary (bplist00) formats.
//
// Property list data is held as a Value: Null, Boolean, Integer, Real,
// Date, Data, UID, String, *Array, *Set or *Dictionary. EncodeBinary and
// DecodeBinary convert between a Value and the binary format, EncodeXML and
// DecodeXML do the same for XML.
//
// The binary encoder stores each distinct primitive once and each
// container once per identity, so a container referenced from two places
// decodes back to a single shared Value. Cyclic container graphs cannot be
// encoded in either format.
//
// Marshal, Unmarshal and the streaming Encoder and Decoder map ordinary Go
// values to property lists; see ValueOf for the mapping. Archiver reads and
// writes NSKeyedArchiver object graphs.
package plist
