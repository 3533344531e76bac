package plist

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"time"
)

var (
	valueType           = reflect.TypeOf((*Value)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	uidType             = reflect.TypeOf(UID(nil))
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

// ValueOf converts a Go value to a Value. Values pass through unchanged;
// otherwise the mapping is
//
//	bool                        Boolean
//	int*, uint*                 Integer
//	float32, float64            Real
//	string, TextMarshaler       String
//	[]byte, [N]byte             Data
//	time.Time                   Date
//	slices and arrays           *Array
//	maps with string keys       *Dictionary, sorted by key
//	structs                     *Dictionary, in field order
//	json.Number                 Integer, or Real if it has a fraction
//	nil                         Null
//
// Struct fields follow `plist:"name,omitempty"` tags; a tag of "-" skips
// the field. Nil pointers and nil interfaces inside structs are omitted.
func ValueOf(v interface{}) (Value, error) {
	if v == nil {
		return Null{}, nil
	}
	if pval, ok := v.(Value); ok {
		return pval, nil
	}
	return marshalValue(reflect.ValueOf(v))
}

func marshalValue(val reflect.Value) (Value, error) {
	if !val.IsValid() {
		return Null{}, nil
	}
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return Null{}, nil
		}
	}
	if val.Type().Implements(valueType) {
		return val.Interface().(Value), nil
	}
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface:
		return marshalValue(val.Elem())
	}

	typ := val.Type()
	if typ == timeType {
		return Date(val.Interface().(time.Time)), nil
	}
	if n, ok := val.Interface().(json.Number); ok {
		return numberValue(n)
	}
	if typ.Implements(textMarshalerType) {
		text, err := val.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return nil, err
		}
		return String(text), nil
	}

	switch val.Kind() {
	case reflect.Bool:
		return Boolean(val.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(val.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Real(val.Float()), nil
	case reflect.String:
		return String(val.String()), nil
	case reflect.Slice, reflect.Array:
		if typ.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, val.Len())
			reflect.Copy(reflect.ValueOf(b), val)
			return Data(b), nil
		}
		arr := &Array{Values: make([]Value, val.Len())}
		for i := range arr.Values {
			e, err := marshalValue(val.Index(i))
			if err != nil {
				return nil, err
			}
			arr.Values[i] = e
		}
		return arr, nil
	case reflect.Map:
		if typ.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("plist: unsupported map key type %v", typ.Key())
		}
		keys := val.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		dict := NewDictionary()
		for _, k := range keys {
			e, err := marshalValue(val.MapIndex(k))
			if err != nil {
				return nil, err
			}
			dict.Set(k.String(), e)
		}
		return dict, nil
	case reflect.Struct:
		return marshalStruct(val)
	}
	return nil, fmt.Errorf("plist: unsupported type %v", typ)
}

func marshalStruct(val reflect.Value) (Value, error) {
	dict := NewDictionary()
	for _, finfo := range getTypeInfo(val.Type()).fields {
		fval, ok := finfo.value(val, false)
		if !ok {
			continue
		}
		switch fval.Kind() {
		case reflect.Ptr, reflect.Interface:
			if fval.IsNil() {
				continue
			}
		}
		if finfo.omitEmpty && isEmptyValue(fval) {
			continue
		}
		e, err := marshalValue(fval)
		if err != nil {
			return nil, fmt.Errorf("%w (field %s)", err, finfo.name)
		}
		dict.Set(finfo.name, e)
	}
	return dict, nil
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Interface, reflect.Ptr:
		return v.IsNil()
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).IsZero()
		}
	}
	return false
}

func numberValue(n json.Number) (Value, error) {
	if i, err := strconv.ParseInt(string(n), 10, 64); err == nil {
		return Int(i), nil
	}
	if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
		return Uint(u), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	return Real(f), nil
}

// unmarshal stores pval in val, which must be settable.
func unmarshal(pval Value, val reflect.Value) error {
	if val.Kind() == reflect.Ptr {
		if _, isNull := pval.(Null); isNull {
			val.Set(reflect.Zero(val.Type()))
			return nil
		}
		if val.IsNil() {
			val.Set(reflect.New(val.Type().Elem()))
		}
		val = val.Elem()
	}
	typ := val.Type()
	if typ == valueType {
		val.Set(reflect.ValueOf(&pval).Elem())
		return nil
	}
	if val.Kind() == reflect.Interface && val.NumMethod() == 0 {
		if g := ToGo(pval); g != nil {
			val.Set(reflect.ValueOf(g))
		} else {
			val.Set(reflect.Zero(typ))
		}
		return nil
	}
	if s, ok := pval.(String); ok && reflect.PtrTo(typ).Implements(textUnmarshalerType) {
		return val.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s))
	}

	switch pval := pval.(type) {
	case Null:
		val.Set(reflect.Zero(typ))
	case String:
		if val.Kind() != reflect.String {
			return fmt.Errorf("not string field: %v", typ)
		}
		val.SetString(string(pval))
	case Integer:
		return unmarshalInteger(pval, val)
	case Real:
		if val.Kind() != reflect.Float32 && val.Kind() != reflect.Float64 {
			return fmt.Errorf("not float field: %v", typ)
		}
		val.SetFloat(float64(pval))
	case Boolean:
		if val.Kind() != reflect.Bool {
			return fmt.Errorf("not bool field: %v", typ)
		}
		val.SetBool(bool(pval))
	case Date:
		if typ != timeType {
			return fmt.Errorf("not time field: %v", typ)
		}
		val.Set(reflect.ValueOf(time.Time(pval)))
	case Data:
		return unmarshalBytes([]byte(pval), val, "data")
	case UID:
		if typ == uidType {
			val.SetBytes(append([]byte(nil), pval...))
			return nil
		}
		if n, ok := pval.Index(); ok {
			switch val.Kind() {
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
				reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
				return unmarshalInteger(Uint(n), val)
			}
		}
		return unmarshalBytes([]byte(pval), val, "UID")
	case *Array:
		return unmarshalList(pval.Values, val)
	case *Set:
		return unmarshalList(pval.Values, val)
	case *Dictionary:
		switch val.Kind() {
		case reflect.Map:
			return unmarshalMap(pval, val)
		case reflect.Struct:
			return unmarshalStruct(pval, val)
		}
		return fmt.Errorf("not map or struct field: %v", typ)
	default:
		return fmt.Errorf("not plist type: %T", pval)
	}
	return nil
}

func unmarshalInteger(n Integer, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := n.Int64()
		if !ok || val.OverflowInt(i) {
			return fmt.Errorf("integer %s overflows %v", n, val.Type())
		}
		val.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u, ok := n.Uint64()
		if !ok || val.OverflowUint(u) {
			return fmt.Errorf("integer %s overflows %v", n, val.Type())
		}
		val.SetUint(u)
	case reflect.Float32, reflect.Float64:
		if n.Negative() {
			i, _ := n.Int64()
			val.SetFloat(float64(i))
		} else {
			u, _ := n.Uint64()
			val.SetFloat(float64(u))
		}
	default:
		return fmt.Errorf("not integer field: %v", val.Type())
	}
	return nil
}

func unmarshalBytes(b []byte, val reflect.Value, what string) error {
	switch {
	case val.Kind() == reflect.Slice && val.Type().Elem().Kind() == reflect.Uint8:
		val.SetBytes(append([]byte(nil), b...))
	case val.Kind() == reflect.Array && val.Type().Elem().Kind() == reflect.Uint8:
		if val.Len() != len(b) {
			return fmt.Errorf("%s of %d bytes does not fit %v", what, len(b), val.Type())
		}
		reflect.Copy(val, reflect.ValueOf(b))
	default:
		return fmt.Errorf("not %s field: %v", what, val.Type())
	}
	return nil
}

func unmarshalList(values []Value, val reflect.Value) error {
	switch val.Kind() {
	case reflect.Slice:
		val.Set(reflect.MakeSlice(val.Type(), len(values), len(values)))
	case reflect.Array:
		if val.Len() != len(values) {
			return fmt.Errorf("array of %d values does not fit %v", len(values), val.Type())
		}
	default:
		return fmt.Errorf("not slice field: %v", val.Type())
	}
	for i, v := range values {
		if err := unmarshal(v, val.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func unmarshalMap(dict *Dictionary, val reflect.Value) error {
	typ := val.Type()
	if typ.Key().Kind() != reflect.String {
		return fmt.Errorf("not string-keyed map field: %v", typ)
	}
	if val.IsNil() {
		val.Set(reflect.MakeMapWithSize(typ, dict.Len()))
	}
	for i, k := range dict.keys {
		elem := reflect.New(typ.Elem()).Elem()
		if err := unmarshal(dict.values[i], elem); err != nil {
			return fmt.Errorf("%w (key %q)", err, k)
		}
		val.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), elem)
	}
	return nil
}

func unmarshalStruct(dict *Dictionary, val reflect.Value) error {
	for _, finfo := range getTypeInfo(val.Type()).fields {
		dval, ok := dict.Get(finfo.name)
		if !ok {
			continue
		}
		fval, _ := finfo.value(val, true)
		if err := unmarshal(dval, fval); err != nil {
			return fmt.Errorf("%w (field %s)", err, finfo.name)
		}
	}
	return nil
}

// Into stores pval in the Go value pointed to by v, using the inverse of
// the ValueOf mapping.
func Into(pval Value, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: Into needs a non-nil pointer, got %T", ErrInvalidArgument, v)
	}
	return unmarshal(pval, rv.Elem())
}
