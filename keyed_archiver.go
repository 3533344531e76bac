package plist

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	uuid "github.com/satori/go.uuid"
)

const (
	archiverVersion = 100000
	archiverName    = "NSKeyedArchiver"
	archiverNull    = "$null"

	archiverClassKey = "$class"
)

type archiverClass struct {
	ClassName string   `plist:"$classname"`
	Classes   []string `plist:"$classes"`
}

var (
	archiverMutableDictionaryClass = &archiverClass{ClassName: "NSMutableDictionary", Classes: []string{"NSMutableDictionary", "NSDictionary", "NSObject"}}
	archiverMutableArrayClass      = &archiverClass{ClassName: "NSMutableArray", Classes: []string{"NSMutableArray", "NSArray", "NSObject"}}
	archiverMutableSetClass        = &archiverClass{ClassName: "NSMutableSet", Classes: []string{"NSMutableSet", "NSSet", "NSObject"}}
	archiverMutableDataClass       = &archiverClass{ClassName: "NSMutableData", Classes: []string{"NSMutableData", "NSData", "NSObject"}}
	archiverDateClass              = &archiverClass{ClassName: "NSDate", Classes: []string{"NSDate", "NSObject"}}
	archiverUUIDClass              = &archiverClass{ClassName: "NSUUID", Classes: []string{"NSUUID", "NSObject"}}

	archiverUUIDType = reflect.TypeOf(uuid.UUID{})

	archiverClasses = make(map[reflect.Type]*archiverClass)
)

// ArchiverAddFoundation registers a struct type to be archived as an object
// of class name, with its fields as the object's keys. classes lists the
// class hierarchy, most derived first.
func ArchiverAddFoundation(typ reflect.Type, name string, classes ...string) {
	archiverClasses[typ] = &archiverClass{ClassName: name, Classes: classes}
}

func (mcac *archiverClass) isDictionary() bool {
	return mcac.ClassName == "NSMutableDictionary" || mcac.ClassName == "NSDictionary"
}
func (mcac *archiverClass) isArray() bool {
	return mcac.ClassName == "NSMutableArray" || mcac.ClassName == "NSArray"
}
func (mcac *archiverClass) isSet() bool {
	return mcac.ClassName == "NSMutableSet" || mcac.ClassName == "NSSet"
}
func (mcac *archiverClass) isData() bool {
	return mcac.ClassName == "NSMutableData" || mcac.ClassName == "NSData"
}
func (mcac *archiverClass) isString() bool {
	return mcac.ClassName == "NSMutableString" || mcac.ClassName == "NSString"
}
func (mcac *archiverClass) isUUID() bool {
	return mcac.ClassName == "NSUUID"
}
func (mcac *archiverClass) isDate() bool {
	return mcac.ClassName == "NSDate"
}

func (mcac *archiverClass) value() *Dictionary {
	classes := &Array{}
	for _, c := range mcac.Classes {
		classes.Values = append(classes.Values, String(c))
	}
	d := NewDictionary()
	d.Set("$classes", classes)
	d.Set("$classname", String(mcac.ClassName))
	return d
}

// Archiver reads and writes NSKeyedArchiver property lists: a flat
// $objects table whose entries point at each other with UIDs.
type Archiver struct {
	Version  int
	Objects  []Value
	Archiver string
	Top      UID

	nested   map[Value]bool // containers being archived
	resolved map[uint64]Value
	pending  map[uint64]bool
}

func archiverUID(i int) UID {
	u, _ := MakeUID(Uint(uint64(i)))
	return u
}

func archiveError(format string, args ...interface{}) error {
	return &FormatError{Format: archiverName, Msg: fmt.Sprintf(format, args...)}
}

// ReadFromZipData reads a gzip-compressed archive.
func (a *Archiver) ReadFromZipData(data []byte) error {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return err
	}
	defer reader.Close()
	return a.ReadFromReader(reader)
}

// ReadFromData reads an archive in either plist format.
func (a *Archiver) ReadFromData(data []byte) error {
	return a.ReadFromReader(bytes.NewReader(data))
}

// ReadFromReader reads an archive in either plist format from reader.
func (a *Archiver) ReadFromReader(reader io.Reader) error {
	pval, err := NewDecoder(reader).DecodeValue()
	if err != nil {
		return err
	}
	return a.load(pval)
}

func (a *Archiver) load(pval Value) error {
	doc, ok := pval.(*Dictionary)
	if !ok {
		return archiveError("root is a %s, not a dictionary", pval.typeName())
	}
	objects, ok := doc.Get("$objects")
	if !ok {
		return archiveError("missing $objects")
	}
	list, ok := objects.(*Array)
	if !ok {
		return archiveError("$objects is not an array")
	}
	top, ok := doc.Get("$top")
	if !ok {
		return archiveError("missing $top")
	}
	topDict, ok := top.(*Dictionary)
	if !ok || topDict.Len() == 0 {
		return archiveError("$top is not a non-empty dictionary")
	}
	root, ok := topDict.Get("root")
	if !ok {
		// Some archivers name the root object $0.
		root = topDict.values[0]
	}
	rootUID, ok := root.(UID)
	if !ok {
		return archiveError("$top root is a %s, not a UID", root.typeName())
	}

	a.Objects = list.Values
	a.Top = rootUID
	a.Archiver = ""
	if name, ok := doc.Get("$archiver"); ok {
		if s, ok := name.(String); ok {
			a.Archiver = string(s)
		}
	}
	a.Version = 0
	if version, ok := doc.Get("$version"); ok {
		if n, ok := version.(Integer); ok {
			v, _ := n.Int64()
			a.Version = int(v)
		}
	}
	a.resolved = nil
	a.pending = nil
	return nil
}

func (a *Archiver) addObject(obj Value) UID {
	for i, o := range a.Objects {
		if cmp.Equal(o, obj, cmp.Comparer(dictionaryEqual)) {
			return archiverUID(i)
		}
	}
	a.Objects = append(a.Objects, obj)
	return archiverUID(len(a.Objects) - 1)
}

func (a *Archiver) addClass(class *archiverClass) UID {
	return a.addObject(class.value())
}

// Marshal archives v and returns the archive as a binary property list.
// Besides what ValueOf accepts, uuid.UUID is archived as NSUUID and
// structs registered with ArchiverAddFoundation as their own class.
func (a *Archiver) Marshal(v interface{}) ([]byte, error) {
	a.Version = archiverVersion
	a.Archiver = archiverName
	a.Objects = make([]Value, 0)
	a.addObject(String(archiverNull))
	index, err := a.marshal(reflect.ValueOf(v))
	if err != nil {
		return nil, err
	}
	a.Top = index

	top := NewDictionary()
	top.Set("root", a.Top)
	doc := NewDictionary()
	doc.Set("$version", Int(int64(a.Version)))
	doc.Set("$archiver", String(a.Archiver))
	doc.Set("$top", top)
	doc.Set("$objects", &Array{Values: a.Objects})
	return EncodeBinary(doc)
}

func (a *Archiver) marshal(val reflect.Value) (UID, error) {
	null := archiverUID(0)
	for val.Kind() == reflect.Ptr || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return null, nil
		}
		if val.Type().Implements(valueType) {
			break
		}
		val = val.Elem()
	}
	if !val.IsValid() {
		return null, nil
	}
	if val.Type().Implements(valueType) {
		return a.marshalValue(val.Interface().(Value))
	}

	typ := val.Type()
	switch {
	case typ == archiverUUIDType:
		return a.marshalUUID(val.Interface().(uuid.UUID)), nil
	case typ == timeType:
		return a.marshalDate(val.Interface().(time.Time)), nil
	}

	switch val.Kind() {
	case reflect.String:
		if val.String() == archiverNull {
			return null, nil
		}
		return a.addObject(String(val.String())), nil
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, val.Len())
			reflect.Copy(reflect.ValueOf(b), val)
			return a.marshalData(b), nil
		}
		refs := make([]Value, val.Len())
		for i := range refs {
			ref, err := a.marshal(val.Index(i))
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}
		return a.marshalList(refs, archiverMutableArrayClass), nil
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unknow map key: %v", typ.Key())
		}
		mkeys := val.MapKeys()
		sort.Slice(mkeys, func(i, j int) bool { return mkeys[i].String() < mkeys[j].String() })
		var keys, refs []Value
		for _, k := range mkeys {
			ref, err := a.marshal(val.MapIndex(k))
			if err != nil {
				return nil, err
			}
			keys = append(keys, a.addObject(String(k.String())))
			refs = append(refs, ref)
		}
		return a.marshalTable(keys, refs), nil
	case reflect.Struct:
		return a.marshalStruct(val)
	}

	// Remaining kinds are plain scalars.
	pval, err := marshalValue(val)
	if err != nil {
		return nil, err
	}
	return a.addObject(pval), nil
}

func (a *Archiver) marshalValue(pval Value) (UID, error) {
	if isContainer(pval) {
		if a.nested[pval] {
			return nil, archiveError("cyclic reference to %s", pval.typeName())
		}
		if a.nested == nil {
			a.nested = make(map[Value]bool)
		}
		a.nested[pval] = true
		defer delete(a.nested, pval)
	}
	switch pval := pval.(type) {
	case Null:
		return archiverUID(0), nil
	case String:
		if pval == archiverNull {
			return archiverUID(0), nil
		}
	case Date:
		return a.marshalDate(time.Time(pval)), nil
	case Data:
		return a.marshalData(pval), nil
	case *Array:
		refs, err := a.marshalAll(pval.Values)
		if err != nil {
			return nil, err
		}
		return a.marshalList(refs, archiverMutableArrayClass), nil
	case *Set:
		refs, err := a.marshalAll(pval.Values)
		if err != nil {
			return nil, err
		}
		return a.marshalList(refs, archiverMutableSetClass), nil
	case *Dictionary:
		var keys []Value
		for _, k := range pval.keys {
			keys = append(keys, a.addObject(String(k)))
		}
		refs, err := a.marshalAll(pval.values)
		if err != nil {
			return nil, err
		}
		return a.marshalTable(keys, refs), nil
	}
	return a.addObject(pval), nil
}

func (a *Archiver) marshalAll(values []Value) ([]Value, error) {
	refs := make([]Value, len(values))
	for i, v := range values {
		ref, err := a.marshalValue(v)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return refs, nil
}

func (a *Archiver) marshalDate(t time.Time) UID {
	date := NewDictionary()
	date.Set("NS.time", Real(appleSeconds(t)))
	date.Set(archiverClassKey, a.addClass(archiverDateClass))
	return a.addObject(date)
}

func (a *Archiver) marshalData(b []byte) UID {
	data := NewDictionary()
	data.Set("NS.data", Data(b))
	data.Set(archiverClassKey, a.addClass(archiverMutableDataClass))
	return a.addObject(data)
}

func (a *Archiver) marshalUUID(u uuid.UUID) UID {
	obj := NewDictionary()
	obj.Set("NS.uuidbytes", Data(u.Bytes()))
	obj.Set(archiverClassKey, a.addClass(archiverUUIDClass))
	return a.addObject(obj)
}

func (a *Archiver) marshalList(refs []Value, class *archiverClass) UID {
	arr := NewDictionary()
	arr.Set("NS.objects", &Array{Values: refs})
	arr.Set(archiverClassKey, a.addClass(class))
	return a.addObject(arr)
}

func (a *Archiver) marshalTable(keys, refs []Value) UID {
	table := NewDictionary()
	table.Set("NS.keys", &Array{Values: keys})
	table.Set("NS.objects", &Array{Values: refs})
	table.Set(archiverClassKey, a.addClass(archiverMutableDictionaryClass))
	return a.addObject(table)
}

func (a *Archiver) marshalStruct(val reflect.Value) (UID, error) {
	typ := val.Type()
	tinfo := getTypeInfo(typ)
	class, custom := archiverClasses[typ]
	nsobj := NewDictionary()
	var keys, refs []Value
	for _, finfo := range tinfo.fields {
		fval, ok := finfo.value(val, false)
		if !ok || (finfo.omitEmpty && isEmptyValue(fval)) {
			continue
		}
		switch fval.Kind() {
		case reflect.Ptr, reflect.Interface:
			if fval.IsNil() {
				continue
			}
		}
		ref, err := a.marshal(fval)
		if err != nil {
			return nil, err
		}
		if custom {
			nsobj.Set(finfo.name, ref)
			continue
		}
		keys = append(keys, a.addObject(String(finfo.name)))
		refs = append(refs, ref)
	}
	if custom {
		nsobj.Set(archiverClassKey, a.addClass(class))
		return a.addObject(nsobj), nil
	}
	return a.marshalTable(keys, refs), nil
}

// Unarchive resolves the object graph under the root object. Foundation
// classes become plain values:
//
//	NSDictionary  *Dictionary
//	NSArray       *Array
//	NSSet         *Set
//	NSData        Data
//	NSDate        Date
//	NSString      String
//	NSUUID        String, in canonical 8-4-4-4-12 form
//	$null         Null
//
// Objects of other classes become a *Dictionary of their resolved keys
// with "$class" holding the class name. An object referenced twice
// resolves to the same Value, and reference cycles are kept.
func (a *Archiver) Unarchive() (pval Value, err error) {
	root, ok := a.Top.Index()
	if !ok {
		return nil, archiveError("invalid root %v", a.Top)
	}
	a.resolved = make(map[uint64]Value)
	a.pending = make(map[uint64]bool)
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*FormatError); ok {
				err = e
				return
			}
			panic(r)
		}
	}()
	return a.objectAt(root), nil
}

// Unmarshal stores the unarchived root object in v; see ValueOf for the
// mapping of values to Go types.
func (a *Archiver) Unmarshal(v interface{}) error {
	pval, err := a.Unarchive()
	if err != nil {
		return err
	}
	return Into(pval, v)
}

func (a *Archiver) ref(v Value) Value {
	if u, ok := v.(UID); ok {
		index, ok := u.Index()
		if !ok {
			panic(archiveError("invalid reference %v", u))
		}
		return a.objectAt(index)
	}
	return v
}

func (a *Archiver) objectAt(index uint64) Value {
	if index == 0 {
		return Null{}
	}
	if pval, ok := a.resolved[index]; ok {
		return pval
	}
	if index >= uint64(len(a.Objects)) {
		panic(archiveError("reference %d outside of %d objects", index, len(a.Objects)))
	}
	if a.pending[index] {
		panic(archiveError("object %d refers to itself before it can be built", index))
	}
	obj := a.Objects[index]
	dict, ok := obj.(*Dictionary)
	if !ok {
		a.resolved[index] = obj
		return obj
	}
	if _, ok := dict.Get(archiverClassKey); !ok {
		out := NewDictionary()
		a.resolved[index] = out
		a.fill(out, dict)
		return out
	}

	class := a.class(dict)
	switch {
	case class.isDictionary():
		out := NewDictionary()
		a.resolved[index] = out
		keys, values := a.list(dict, "NS.keys"), a.list(dict, "NS.objects")
		if len(keys) != len(values) {
			panic(archiveError("%s has %d keys for %d objects", class.ClassName, len(keys), len(values)))
		}
		for i, k := range keys {
			key, ok := a.ref(k).(String)
			if !ok {
				panic(archiveError("%s key %d is not a string", class.ClassName, i))
			}
			out.Set(string(key), a.ref(values[i]))
		}
		return out
	case class.isArray():
		out := &Array{}
		a.resolved[index] = out
		for _, e := range a.list(dict, "NS.objects") {
			out.Values = append(out.Values, a.ref(e))
		}
		return out
	case class.isSet():
		out := &Set{}
		a.resolved[index] = out
		for _, e := range a.list(dict, "NS.objects") {
			out.Add(a.ref(e))
		}
		return out
	}

	// The remaining classes hold no containers, so they cannot close a cycle
	// through index; pending catches malformed archives that try.
	a.pending[index] = true
	defer delete(a.pending, index)
	var pval Value
	switch {
	case class.isData():
		pval = a.field(dict, class, "NS.data", func(v Value) (Value, bool) {
			b, ok := v.(Data)
			return b, ok
		})
	case class.isString():
		pval = a.field(dict, class, "NS.string", func(v Value) (Value, bool) {
			s, ok := v.(String)
			return s, ok
		})
	case class.isDate():
		pval = a.field(dict, class, "NS.time", func(v Value) (Value, bool) {
			switch t := v.(type) {
			case Real:
				return Date(fromAppleSeconds(float64(t))), true
			case Integer:
				n, ok := t.Int64()
				return Date(fromAppleSeconds(float64(n))), ok
			}
			return nil, false
		})
	case class.isUUID():
		pval = a.field(dict, class, "NS.uuidbytes", func(v Value) (Value, bool) {
			b, ok := v.(Data)
			if !ok {
				return nil, false
			}
			u, err := uuid.FromBytes(b)
			return String(u.String()), err == nil
		})
	default:
		out := NewDictionary()
		a.resolved[index] = out
		a.fill(out, dict)
		out.Set(archiverClassKey, String(class.ClassName))
		return out
	}
	a.resolved[index] = pval
	return pval
}

func (a *Archiver) fill(out, dict *Dictionary) {
	for i, k := range dict.keys {
		if k == archiverClassKey {
			continue
		}
		out.Set(k, a.ref(dict.values[i]))
	}
}

func (a *Archiver) field(dict *Dictionary, class *archiverClass, key string, conv func(Value) (Value, bool)) Value {
	v, ok := dict.Get(key)
	if !ok {
		panic(archiveError("%s without %s", class.ClassName, key))
	}
	pval, ok := conv(a.ref(v))
	if !ok {
		panic(archiveError("%s has a malformed %s", class.ClassName, key))
	}
	return pval
}

func (a *Archiver) list(dict *Dictionary, key string) []Value {
	v, ok := dict.Get(key)
	if !ok {
		return nil
	}
	arr, ok := v.(*Array)
	if !ok {
		panic(archiveError("%s is a %s, not an array", key, v.typeName()))
	}
	return arr.Values
}

func (a *Archiver) class(dict *Dictionary) *archiverClass {
	ref, _ := dict.Get(archiverClassKey)
	u, ok := ref.(UID)
	if !ok {
		panic(archiveError("$class is a %s, not a UID", ref.typeName()))
	}
	index, ok := u.Index()
	if !ok || index >= uint64(len(a.Objects)) {
		panic(archiveError("invalid $class reference %v", u))
	}
	class := &archiverClass{}
	if err := Into(a.Objects[index], class); err != nil {
		panic(archiveError("class %d: %v", index, err))
	}
	if class.ClassName == "" {
		panic(archiveError("class %d has no $classname", index))
	}
	return class
}
