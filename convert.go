package plist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ToGo returns v as plain Go data:
//
//	Null        nil
//	Boolean     bool
//	Integer     int64, or uint64 above math.MaxInt64
//	Real        float64
//	Date        time.Time
//	Data        []byte
//	UID         UID
//	String      string
//	*Array      []interface{}
//	*Set        []interface{}
//	*Dictionary map[string]interface{}
//
// A container that contains itself is cut at the repeat, which becomes nil.
func ToGo(v Value) interface{} {
	return toGo(v, make(map[Value]bool))
}

func toGo(v Value, path map[Value]bool) interface{} {
	if isContainer(v) {
		if path[v] {
			return nil
		}
		path[v] = true
		defer delete(path, v)
	}
	switch v := v.(type) {
	case Boolean:
		return bool(v)
	case Integer:
		if i, ok := v.Int64(); ok {
			return i
		}
		u, _ := v.Uint64()
		return u
	case Real:
		return float64(v)
	case Date:
		return time.Time(v)
	case Data:
		return []byte(v)
	case UID:
		return v
	case String:
		return string(v)
	case *Array:
		return toGoList(v.Values, path)
	case *Set:
		return toGoList(v.Values, path)
	case *Dictionary:
		m := make(map[string]interface{}, v.Len())
		for i, k := range v.keys {
			m[k] = toGo(v.values[i], path)
		}
		return m
	}
	return nil
}

func toGoList(values []Value, path map[Value]bool) []interface{} {
	out := make([]interface{}, len(values))
	for i, e := range values {
		out[i] = toGo(e, path)
	}
	return out
}

// ConvertToJSON decodes a property list in either format and re-encodes it
// as JSON. Data and UIDs become base64 strings and dates RFC 3339 strings.
// Reals that JSON cannot carry (NaN and the infinities) are an error.
func ConvertToJSON(data []byte) ([]byte, error) {
	pval, err := NewDecoder(bytes.NewReader(data)).DecodeValue()
	if err != nil {
		return nil, err
	}
	if err := checkJSONReals(pval, make(map[Value]bool)); err != nil {
		return nil, err
	}
	return json.Marshal(ToGo(pval))
}

func checkJSONReals(v Value, seen map[Value]bool) error {
	if isContainer(v) {
		if seen[v] {
			return nil
		}
		seen[v] = true
	}
	switch v := v.(type) {
	case Real:
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: real %v has no JSON form", ErrOutOfRange, float64(v))
		}
	case *Array:
		return checkJSONList(v.Values, seen)
	case *Set:
		return checkJSONList(v.Values, seen)
	case *Dictionary:
		return checkJSONList(v.values, seen)
	}
	return nil
}

func checkJSONList(values []Value, seen map[Value]bool) error {
	for _, e := range values {
		if err := checkJSONReals(e, seen); err != nil {
			return err
		}
	}
	return nil
}
