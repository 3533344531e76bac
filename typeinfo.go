package plist

import (
	"reflect"
	"strings"
	"sync"
)

// typeInfo holds details for the plist representation of a struct type.
type typeInfo struct {
	fields []fieldInfo
}

// fieldInfo holds details for the plist representation of a single field.
type fieldInfo struct {
	idx       []int
	name      string
	omitEmpty bool
}

var tinfoMap sync.Map // map[reflect.Type]*typeInfo

// getTypeInfo returns the typeInfo for typ, building and caching it on
// first use.
func getTypeInfo(typ reflect.Type) *typeInfo {
	if ti, ok := tinfoMap.Load(typ); ok {
		return ti.(*typeInfo)
	}
	tinfo := &typeInfo{}
	if typ.Kind() == reflect.Struct {
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			tag := f.Tag.Get("plist")
			if tag == "-" || (!f.Anonymous && f.PkgPath != "") {
				continue // Private field
			}

			// For embedded structs without a tag name, embed its fields.
			if f.Anonymous && tagName(tag) == "" {
				t := f.Type
				if t.Kind() == reflect.Ptr {
					t = t.Elem()
				}
				if t.Kind() == reflect.Struct {
					for _, finfo := range getTypeInfo(t).fields {
						finfo.idx = append([]int{i}, finfo.idx...)
						tinfo.add(finfo)
					}
					continue
				}
				if f.PkgPath != "" {
					continue
				}
			}
			tinfo.add(structFieldInfo(&f, tag))
		}
	}
	ti, _ := tinfoMap.LoadOrStore(typ, tinfo)
	return ti.(*typeInfo)
}

func tagName(tag string) string {
	if i := strings.IndexByte(tag, ','); i >= 0 {
		return tag[:i]
	}
	return tag
}

// structFieldInfo builds a fieldInfo from a `plist:"name,omitempty"` tag.
func structFieldInfo(f *reflect.StructField, tag string) fieldInfo {
	finfo := fieldInfo{idx: f.Index, name: f.Name}
	tokens := strings.Split(tag, ",")
	if tokens[0] != "" {
		finfo.name = tokens[0]
	}
	for _, flag := range tokens[1:] {
		if flag == "omitempty" {
			finfo.omitEmpty = true
		}
	}
	return finfo
}

// add appends newf unless a shallower field already claims its name. A
// shallower newf replaces deeper ones, matching Go's own embedding rules.
func (tinfo *typeInfo) add(newf fieldInfo) {
	var conflicts []int
	for i := range tinfo.fields {
		if tinfo.fields[i].name == newf.name {
			conflicts = append(conflicts, i)
		}
	}
	for _, i := range conflicts {
		if len(tinfo.fields[i].idx) <= len(newf.idx) {
			return
		}
	}
	for c := len(conflicts) - 1; c >= 0; c-- {
		i := conflicts[c]
		tinfo.fields = append(tinfo.fields[:i], tinfo.fields[i+1:]...)
	}
	tinfo.fields = append(tinfo.fields, newf)
}

// value returns v's field for finfo, allocating nil embedded pointers when
// alloc is set. It reports false if a nil embedded pointer was not followed.
func (finfo *fieldInfo) value(v reflect.Value, alloc bool) (reflect.Value, bool) {
	for i, x := range finfo.idx {
		if i > 0 && v.Kind() == reflect.Ptr {
			if v.IsNil() {
				if !alloc {
					return reflect.Value{}, false
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, true
}
