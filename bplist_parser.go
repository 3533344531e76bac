package plist

import (
	"fmt"
	"runtime"
)

type bplistParser struct {
	buf            []byte
	header         bplistHeader
	trailer        bplistTrailer
	trailerOffset  uint64
	offtable       []uint64         // object ref -> byte offset
	objects        map[uint64]Value // byte offset -> decoded object
	containerStack []uint64         // refs of the containers being decoded
}

func newBplistParser(buf []byte) *bplistParser {
	return &bplistParser{buf: buf}
}

func (p *bplistParser) parseDocument() (pval Value, parseError error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			parseError = r.(error)
		}
	}()

	if len(p.buf) < bplistHeaderSize {
		return nil, &FormatError{Format: "binary", Msg: "document shorter than its header"}
	}
	must(readFixedStruct(p.buf[:bplistHeaderSize], &p.header))
	if string(p.header.Magic[:]) != bplistMagic || string(p.header.Version[:]) != bplistVersion {
		return nil, &FormatError{Format: "binary", Msg: fmt.Sprintf("unexpected magic %q version %q", p.header.Magic[:], p.header.Version[:])}
	}
	if len(p.buf) < bplistHeaderSize+bplistTrailerSize {
		panic(binaryError(-1, "document too short for a trailer (%d bytes)", len(p.buf)))
	}
	p.trailerOffset = uint64(len(p.buf) - bplistTrailerSize)
	must(readFixedStruct(p.buf[p.trailerOffset:], &p.trailer))
	p.validateDocumentTrailer()

	// INVARIANTS:
	// - Offset table lies between the header and the trailer
	// - Object count and table offset are safe integers
	// - Top object is in range
	p.offtable = make([]uint64, p.trailer.NumObjects)
	for i := range p.offtable {
		pos := p.trailer.OffsetTableOffset + uint64(i)*uint64(p.trailer.OffsetIntSize)
		off, err := readFixedInt(p.buf, int(p.trailer.OffsetIntSize), int(pos))
		if err != nil {
			panic(&BinaryParsingError{Offset: int64(pos), Msg: "cannot read offset table", Err: err})
		}
		if off < bplistHeaderSize || off >= p.trailer.OffsetTableOffset {
			panic(binaryError(int64(pos), "object#%d starts outside the object region (0x%x, table@0x%x)", i, off, p.trailer.OffsetTableOffset))
		}
		p.offtable[i] = off
	}
	p.objects = make(map[uint64]Value, p.trailer.NumObjects)

	return p.objectAtIndex(p.trailer.TopObject), nil
}

func (p *bplistParser) validateDocumentTrailer() {
	t := &p.trailer
	if t.NumObjects < 1 {
		panic(binaryError(-1, "document has no objects"))
	}
	if err := checkSafeInteger(t.NumObjects, "numberOfObjects"); err != nil {
		panic(&BinaryParsingError{Offset: -1, Msg: "invalid trailer", Err: err})
	}
	if err := checkSafeInteger(t.OffsetTableOffset, "offsetTableOffset"); err != nil {
		panic(&BinaryParsingError{Offset: -1, Msg: "invalid trailer", Err: err})
	}
	for _, size := range []uint8{t.OffsetIntSize, t.ObjectRefSize} {
		switch size {
		case 1, 2, 4, 8:
		default:
			panic(&BinaryParsingError{Offset: -1, Msg: "invalid trailer", Err: SizeError{Size: int(size)}})
		}
	}
	if t.OffsetTableOffset < bplistHeaderSize {
		panic(binaryError(-1, "offset table begins inside header (0x%x)", t.OffsetTableOffset))
	}
	if t.NumObjects > p.trailerOffset {
		panic(binaryError(-1, "more objects (%d) than there are bytes in the document", t.NumObjects))
	}
	if t.OffsetTableOffset+t.NumObjects*uint64(t.OffsetIntSize) > p.trailerOffset {
		panic(binaryError(-1, "offset table at 0x%x runs into the trailer at 0x%x", t.OffsetTableOffset, p.trailerOffset))
	}
	if t.ObjectRefSize < 8 && t.NumObjects > uint64(1)<<(8*uint(t.ObjectRefSize)) {
		panic(binaryError(-1, "more objects (%d) than %d byte refs can address", t.NumObjects, t.ObjectRefSize))
	}
	if t.TopObject >= t.NumObjects {
		panic(binaryError(-1, "top object #%d is out of range (only %d objects exist)", t.TopObject, t.NumObjects))
	}
}

// objectAtIndex resolves an object ref, decoding each byte offset at most once.
func (p *bplistParser) objectAtIndex(index uint64) Value {
	if index >= p.trailer.NumObjects {
		panic(binaryError(-1, "invalid object #%d (max %d)", index, p.trailer.NumObjects))
	}
	off := p.offtable[index]
	if pval, ok := p.objects[off]; ok {
		return pval
	}
	pval := p.parseTagAtOffset(off, index)
	p.objects[off] = pval
	return pval
}

func (p *bplistParser) panicNestedObject(oid uint64) {
	oids := ""
	for _, v := range p.containerStack {
		oids += fmt.Sprintf("#%d > ", v)
	}
	// %s%d: oids above ends with " > "
	panic(binaryError(int64(p.offtable[oid]), "self-referential collection#%d (%s#%d) cannot be deserialized", oid, oids, oid))
}

func (p *bplistParser) parseTagAtOffset(off uint64, oid uint64) Value {
	for _, v := range p.containerStack {
		if v == oid {
			p.panicNestedObject(oid)
		}
	}
	p.containerStack = append(p.containerStack, oid)
	defer func() {
		p.containerStack = p.containerStack[:len(p.containerStack)-1]
	}()

	pos := int(off)
	typ, info := unpackHeader(p.buf[pos])
	payload := pos + 1

	var pval Value
	var err error
	switch typ {
	case bpTypeSingleton:
		switch info {
		case bpInfoNull:
			return Null{}
		case bpInfoFalse:
			return Boolean(false)
		case bpInfoTrue:
			return Boolean(true)
		}
		err = fmt.Errorf("unexpected singleton 0x%02x", p.buf[pos])
	case bpTypeInteger:
		pval, err = decodeInt(p.buf, info, payload)
	case bpTypeReal:
		var f float64
		f, err = decodeReal(p.buf, info, payload)
		pval = Real(f)
	case bpTypeDate:
		if info != 3 {
			err = SizeError{Size: 1 << info}
			break
		}
		pval, err = decodeDate(p.buf, payload)
	case bpTypeData:
		var b []byte
		b, err = decodeBytesWithLenHeader(p.buf, info, payload, 1)
		pval = Data(b)
	case bpTypeASCIIString, bpTypeUTF8String:
		pval, err = decodeASCIIString(p.buf, info, payload)
	case bpTypeUTF16String:
		pval, err = decodeUTF16String(p.buf, info, payload)
	case bpTypeUID:
		pval, err = decodeUID(p.buf, info, payload)
	case bpTypeArray:
		var refs []uint64
		if refs, err = p.objectRefs(info, payload, 1); err == nil {
			pval = &Array{Values: p.resolve(refs)}
		}
	case bpTypeSet:
		var refs []uint64
		if refs, err = p.objectRefs(info, payload, 1); err == nil {
			pval = &Set{Values: p.resolve(refs)}
		}
	case bpTypeDictionary:
		var refs []uint64
		if refs, err = p.objectRefs(info, payload, 2); err == nil {
			pval = p.parseDictionary(refs)
		}
	default:
		panic(binaryError(int64(off), "Unsupported type 0x%x for object#%d", typ, oid))
	}
	if err != nil {
		panic(&BinaryParsingError{Offset: int64(off), Msg: fmt.Sprintf("cannot decode object#%d", oid), Err: err})
	}
	return pval
}

func (p *bplistParser) objectRefs(info uint8, offset, perEntry int) ([]uint64, error) {
	refs, err := decodeOffsetArray(p.buf, info, offset, perEntry, int(p.trailer.ObjectRefSize))
	if err != nil {
		return nil, err
	}
	end := uint64(offset) + uint64(len(refs))*uint64(p.trailer.ObjectRefSize)
	if end > p.trailer.OffsetTableOffset {
		return nil, fmt.Errorf("%d refs put the object's end beyond the offset table at 0x%x", len(refs), p.trailer.OffsetTableOffset)
	}
	return refs, nil
}

func (p *bplistParser) resolve(refs []uint64) []Value {
	values := make([]Value, len(refs))
	for i, ref := range refs {
		values[i] = p.objectAtIndex(ref)
	}
	return values
}

func (p *bplistParser) parseDictionary(refs []uint64) *Dictionary {
	cnt := len(refs) / 2
	dict := NewDictionary()
	for i := 0; i < cnt; i++ {
		kval := p.objectAtIndex(refs[i])
		key, ok := kval.(String)
		if !ok {
			panic(binaryError(-1, "dictionary contains non-string key %s at index %d", kval.typeName(), i))
		}
		dict.Set(string(key), p.objectAtIndex(refs[cnt+i]))
	}
	return dict
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
