package plist

import (
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Value is a property list value. The set of implementations is closed:
// Null, Boolean, Integer, Real, Date, Data, UID, String, *Array, *Set and
// *Dictionary.
type Value interface {
	typeName() string
}

// Null is the binary plist null singleton. XML property lists cannot carry it.
type Null struct{}

func (Null) typeName() string {
	return "null"
}

// Boolean is a plist boolean.
type Boolean bool

func (Boolean) typeName() string {
	return "boolean"
}

// Integer is a plist integer. It holds any value in the range
// [math.MinInt64, math.MaxUint64], which is everything a bplist00 integer
// object can carry.
type Integer struct {
	signed bool
	value  uint64
}

// Int returns n as an Integer.
func Int(n int64) Integer {
	return Integer{signed: n < 0, value: uint64(n)}
}

// Uint returns n as an Integer.
func Uint(n uint64) Integer {
	return Integer{value: n}
}

func (Integer) typeName() string {
	return "integer"
}

// Negative reports whether i is below zero.
func (i Integer) Negative() bool {
	return i.signed
}

// Int64 returns i as an int64 and whether the conversion was exact.
func (i Integer) Int64() (int64, bool) {
	if i.signed {
		return int64(i.value), true
	}
	return int64(i.value), i.value <= math.MaxInt64
}

// Uint64 returns i as a uint64 and whether the conversion was exact.
func (i Integer) Uint64() (uint64, bool) {
	return i.value, !i.signed
}

// Equal reports whether i and o hold the same number.
func (i Integer) Equal(o Integer) bool {
	return i == o
}

func (i Integer) String() string {
	if i.signed {
		return strconv.FormatInt(int64(i.value), 10)
	}
	return strconv.FormatUint(i.value, 10)
}

// Real is a plist real, always carried as a float64.
type Real float64

func (Real) typeName() string {
	return "real"
}

// Date is a plist date.
type Date time.Time

func (Date) typeName() string {
	return "date"
}

// Equal reports whether d and o are the same instant.
func (d Date) Equal(o Date) bool {
	return time.Time(d).Equal(time.Time(o))
}

// Data is an opaque plist byte buffer.
type Data []byte

func (Data) typeName() string {
	return "data"
}

// UID is an opaque reference identifier as used by NSKeyedArchiver. It is
// stored with its own binary type so it never decodes as Data.
type UID []byte

func (UID) typeName() string {
	return "UID"
}

// Index returns u as an unsigned big-endian number. UIDs longer than eight
// bytes report false.
func (u UID) Index() (uint64, bool) {
	if len(u) == 0 || len(u) > 8 {
		return 0, false
	}
	var n uint64
	for _, b := range u {
		n = n<<8 | uint64(b)
	}
	return n, true
}

func (u UID) String() string {
	return "UID(" + hex.EncodeToString(u) + ")"
}

// String is a plist string.
type String string

func (String) typeName() string {
	return "string"
}

// Array is an ordered sequence of values.
type Array struct {
	Values []Value
}

// NewArray returns an Array holding values.
func NewArray(values ...Value) *Array {
	return &Array{Values: values}
}

func (*Array) typeName() string {
	return "array"
}

// Set is an unordered collection of values. Iteration follows insertion
// order. Only the binary format has a set type; XML writes sets as arrays.
type Set struct {
	Values []Value
}

// NewSet returns a Set holding values, dropping repeats.
func NewSet(values ...Value) *Set {
	s := &Set{}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (*Set) typeName() string {
	return "set"
}

// Add appends v unless the set already holds an equal primitive or the
// same container.
func (s *Set) Add(v Value) {
	for _, o := range s.Values {
		if sameReference(o, v) {
			return
		}
	}
	s.Values = append(s.Values, v)
}

// Dictionary is a string-keyed mapping that remembers insertion order.
type Dictionary struct {
	keys   []string
	values []Value
	index  map[string]int
}

// NewDictionary returns an empty Dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{index: make(map[string]int)}
}

func (*Dictionary) typeName() string {
	return "dictionary"
}

// Set stores v under key. An existing key keeps its position.
func (d *Dictionary) Set(key string, v Value) {
	if d.index == nil {
		d.index = make(map[string]int)
	}
	if i, ok := d.index[key]; ok {
		d.values[i] = v
		return
	}
	d.index[key] = len(d.keys)
	d.keys = append(d.keys, key)
	d.values = append(d.values, v)
}

// Get returns the value stored under key.
func (d *Dictionary) Get(key string) (Value, bool) {
	i, ok := d.index[key]
	if !ok {
		return nil, false
	}
	return d.values[i], true
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d *Dictionary) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Range calls fn for each entry in insertion order until fn returns false.
func (d *Dictionary) Range(fn func(key string, v Value) bool) {
	for i, k := range d.keys {
		if !fn(k, d.values[i]) {
			return
		}
	}
}

// Equal reports whether a and b hold the same data. Dictionaries compare
// without regard to key order; sets compare in order.
func Equal(a, b Value) bool {
	return cmp.Equal(a, b, cmp.Comparer(dictionaryEqual), cmpopts.EquateEmpty())
}

func dictionaryEqual(a, b *Dictionary) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Len() != b.Len() {
		return false
	}
	for i, k := range a.keys {
		bv, ok := b.Get(k)
		if !ok || !Equal(a.values[i], bv) {
			return false
		}
	}
	return true
}

// Describe renders v in a compact debugging notation. A container nested
// inside itself is shown as "<cycle>".
func Describe(v Value) string {
	return describe(v, make(map[Value]bool))
}

func describe(v Value, path map[Value]bool) string {
	switch v := v.(type) {
	case nil:
		return "<nil>"
	case Null:
		return "null"
	case Boolean:
		return strconv.FormatBool(bool(v))
	case Integer:
		return v.String()
	case Real:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Date:
		return time.Time(v).UTC().Format(time.RFC3339Nano)
	case Data:
		return "<" + hex.EncodeToString(v) + ">"
	case UID:
		return v.String()
	case String:
		return strconv.Quote(string(v))
	}
	if path[v] {
		return "<cycle>"
	}
	path[v] = true
	defer delete(path, v)
	switch v := v.(type) {
	case *Array:
		return describeList("[", "]", v.Values, path)
	case *Set:
		return describeList("set{", "}", v.Values, path)
	case *Dictionary:
		var b strings.Builder
		b.WriteString("{")
		for i, k := range v.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k) + ": " + describe(v.values[i], path))
		}
		b.WriteString("}")
		return b.String()
	}
	return fmt.Sprintf("%v", v)
}

func describeList(open, close string, values []Value, path map[Value]bool) string {
	var b strings.Builder
	b.WriteString(open)
	for i, e := range values {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(describe(e, path))
	}
	b.WriteString(close)
	return b.String()
}
