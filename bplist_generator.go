package plist

import (
	"io"
	"math"
	"runtime"
	"time"

	"github.com/zeebo/blake3"
)

// Reference keys for values that are uniqued by content. Data and UIDs are
// keyed by a digest so that the key stays comparable and fixed-size.
type (
	realKey uint64
	dateKey uint64
	dataKey [32]byte
	uidKey  [32]byte
)

// valueKey returns the uniquing key of a primitive. Containers report false;
// they are uniqued by identity.
func valueKey(v Value) (interface{}, bool) {
	switch v := v.(type) {
	case Null, Boolean, Integer, String:
		return v, true
	case Real:
		return realKey(math.Float64bits(float64(v))), true
	case Date:
		return dateKey(math.Float64bits(appleSeconds(time.Time(v)))), true
	case Data:
		return dataKey(blake3.Sum256(v)), true
	case UID:
		return uidKey(blake3.Sum256(v)), true
	}
	return nil, false
}

func isContainer(v Value) bool {
	switch v.(type) {
	case *Array, *Set, *Dictionary:
		return true
	}
	return false
}

// sameReference reports whether a and b would be written as one object.
func sameReference(a, b Value) bool {
	if ka, ok := valueKey(a); ok {
		kb, ok := valueKey(b)
		return ok && ka == kb
	}
	if _, ok := valueKey(b); ok {
		return false
	}
	return a == b
}

type bplistGenerator struct {
	writer io.Writer

	values  map[interface{}]uint64 // primitive value key -> object ref
	objects map[Value]uint64       // container identity -> object ref
	open    map[Value]bool         // containers whose children are being written
	chunks  [][]byte               // encoded objects, indexed by ref
	refSize int
	trailer bplistTrailer
}

func newBplistGenerator(w io.Writer) *bplistGenerator {
	return &bplistGenerator{writer: w}
}

func (p *bplistGenerator) generateDocument(root Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			err = r.(error)
		}
	}()
	buf, err := p.encodeDocument(root)
	if err != nil {
		return err
	}
	_, err = p.writer.Write(buf)
	return err
}

func (p *bplistGenerator) encodeDocument(root Value) ([]byte, error) {
	if root == nil {
		return nil, binaryError(-1, "cannot encode a nil root")
	}
	p.values = make(map[interface{}]uint64)
	p.objects = make(map[Value]uint64)
	p.open = make(map[Value]bool)
	p.chunks = make([][]byte, 0, 16)
	p.refSize = uintWidth(countObjects(root, make(map[Value]bool)))

	if ref := p.encodeReference(root); ref != 0 {
		panic(binaryError(-1, "root object written as #%d", ref))
	}
	return p.pack()
}

// countObjects bounds the number of objects root needs: every scalar and
// every container, each container counted once.
func countObjects(v Value, seen map[Value]bool) uint64 {
	switch v := v.(type) {
	case *Array:
		if seen[v] {
			return 0
		}
		seen[v] = true
		n := uint64(1)
		for _, e := range v.Values {
			n += countObjects(e, seen)
		}
		return n
	case *Set:
		if seen[v] {
			return 0
		}
		seen[v] = true
		n := uint64(1)
		for _, e := range v.Values {
			n += countObjects(e, seen)
		}
		return n
	case *Dictionary:
		if seen[v] {
			return 0
		}
		seen[v] = true
		n := uint64(1)
		for _, e := range v.values {
			n += 1 + countObjects(e, seen)
		}
		return n
	}
	return 1
}

func (p *bplistGenerator) referenceOf(v Value) (uint64, bool) {
	if key, ok := valueKey(v); ok {
		ref, ok := p.values[key]
		return ref, ok
	}
	ref, ok := p.objects[v]
	return ref, ok
}

func (p *bplistGenerator) remember(v Value, ref uint64) {
	if key, ok := valueKey(v); ok {
		p.values[key] = ref
		return
	}
	p.objects[v] = ref
}

// encodeReference returns the object ref of v, writing v first if it has
// not been seen yet. A container's slot is reserved before its children are
// written, so refs follow the order objects appear in the body.
func (p *bplistGenerator) encodeReference(v Value) uint64 {
	if v == nil {
		panic(binaryError(-1, "cannot encode a nil value"))
	}
	if ref, ok := p.referenceOf(v); ok {
		if isContainer(v) && p.open[v] {
			panic(binaryError(-1, "cyclic reference to %s #%d", v.typeName(), ref))
		}
		return ref
	}
	ref := uint64(len(p.chunks))
	p.remember(v, ref)
	p.chunks = append(p.chunks, nil)

	switch pval := v.(type) {
	case *Array:
		p.chunks[ref] = p.encodeList(pval, bpTypeArray, pval.Values)
	case *Set:
		p.chunks[ref] = p.encodeList(pval, bpTypeSet, pval.Values)
	case *Dictionary:
		p.chunks[ref] = p.encodeDictionary(pval)
	default:
		p.chunks[ref] = p.encodePrimitive(v)
	}
	return ref
}

func (p *bplistGenerator) encodeList(container Value, typ uint8, values []Value) []byte {
	p.open[container] = true
	refs := make([]uint64, len(values))
	for i, e := range values {
		refs[i] = p.encodeReference(e)
	}
	delete(p.open, container)
	return p.mustOffsetArray(len(values), typ, refs)
}

func (p *bplistGenerator) encodeDictionary(dict *Dictionary) []byte {
	p.open[dict] = true
	cnt := dict.Len()
	refs := make([]uint64, 2*cnt)
	for i, k := range dict.keys {
		refs[i] = p.encodeReference(String(k))
		refs[cnt+i] = p.encodeReference(dict.values[i])
	}
	delete(p.open, dict)
	return p.mustOffsetArray(cnt, bpTypeDictionary, refs)
}

func (p *bplistGenerator) mustOffsetArray(count int, typ uint8, refs []uint64) []byte {
	buf, err := encodeOffsetArray(count, typ, refs, p.refSize)
	if err != nil {
		panic(&BinaryParsingError{Offset: -1, Msg: "cannot write object refs", Err: err})
	}
	return buf
}

func (p *bplistGenerator) encodePrimitive(v Value) []byte {
	switch pval := v.(type) {
	case Null:
		return []byte{header(bpTypeSingleton, bpInfoNull)}
	case Boolean:
		if pval {
			return []byte{header(bpTypeSingleton, bpInfoTrue)}
		}
		return []byte{header(bpTypeSingleton, bpInfoFalse)}
	case Integer:
		return encodeInt(pval)
	case Real:
		return encodeReal(float64(pval))
	case Date:
		return encodeDate(pval)
	case Data:
		return encodeBytesWithLenHeader(pval, bpTypeData, 1)
	case UID:
		buf, err := encodeUID(pval)
		if err != nil {
			panic(&BinaryParsingError{Offset: -1, Msg: "cannot write UID", Err: err})
		}
		return buf
	case String:
		return encodeString(string(pval))
	}
	panic(binaryError(-1, "unsupported value type %T", v))
}

// pack lays out header, objects, offset table and trailer.
func (p *bplistGenerator) pack() ([]byte, error) {
	size := bplistHeaderSize
	offsets := make([]uint64, len(p.chunks))
	var maxOffset uint64
	for i, c := range p.chunks {
		offsets[i] = uint64(size)
		maxOffset = offsets[i]
		size += len(c)
	}
	offsetSize := uintWidth(maxOffset)

	p.trailer = bplistTrailer{
		OffsetIntSize:     uint8(offsetSize),
		ObjectRefSize:     uint8(p.refSize),
		NumObjects:        uint64(len(p.chunks)),
		TopObject:         0,
		OffsetTableOffset: uint64(size),
	}

	buf := make([]byte, 0, size+len(offsets)*offsetSize+bplistTrailerSize)
	buf = append(buf, writeFixedStruct(newBplistHeader())...)
	for _, c := range p.chunks {
		buf = append(buf, c...)
	}
	var err error
	for _, off := range offsets {
		if buf, err = appendFixedInt(buf, off, offsetSize); err != nil {
			return nil, &BinaryParsingError{Offset: -1, Msg: "cannot write offset table", Err: err}
		}
	}
	return append(buf, writeFixedStruct(&p.trailer)...), nil
}
