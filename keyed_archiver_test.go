package plist

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	uuid "github.com/satori/go.uuid"
)

type archivedNote struct {
	Title   string    `plist:"title"`
	Tags    []string  `plist:"tags"`
	Created time.Time `plist:"created"`
	ID      uuid.UUID `plist:"id"`
	Body    []byte    `plist:"body"`
	Count   int       `plist:"count"`
}

func testNote() archivedNote {
	return archivedNote{
		Title:   "groceries",
		Tags:    []string{"home", "groceries"},
		Created: time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC),
		ID:      uuid.FromStringOrNil("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Body:    []byte{0xde, 0xad, 0xbe, 0xef},
		Count:   3,
	}
}

func TestArchiverRoundTrip(t *testing.T) {
	in := testNote()
	data, err := (&Archiver{}).Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("bplist00")) {
		t.Fatalf("archive is not a binary plist: %q", data[:8])
	}

	archiver := &Archiver{}
	if err := archiver.ReadFromData(data); err != nil {
		t.Fatal(err)
	}
	if archiver.Archiver != "NSKeyedArchiver" || archiver.Version != 100000 {
		t.Errorf("archiver %q version %d", archiver.Archiver, archiver.Version)
	}
	var out archivedNote
	if err := archiver.Unmarshal(&out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiverLayout(t *testing.T) {
	data, err := (&Archiver{}).Marshal([]string{"a", "a"})
	if err != nil {
		t.Fatal(err)
	}
	pval, err := DecodeBinary(data)
	if err != nil {
		t.Fatal(err)
	}
	doc := pval.(*Dictionary)
	objects, _ := doc.Get("$objects")
	list := objects.(*Array).Values
	// $null, "a" once, the class and the array itself.
	if len(list) != 4 {
		t.Fatalf("got %d objects, want 4: %s", len(list), Describe(objects))
	}
	if list[0] != String("$null") {
		t.Errorf("object 0 = %s", Describe(list[0]))
	}
	top, _ := doc.Get("$top")
	root, _ := top.(*Dictionary).Get("root")
	if !Equal(root, UID{3}) {
		t.Errorf("root = %s, want UID(03)", Describe(root))
	}

	array := list[3].(*Dictionary)
	refs, _ := array.Get("NS.objects")
	if !Equal(refs, NewArray(UID{1}, UID{1})) {
		t.Errorf("NS.objects = %s", Describe(refs))
	}
}

func TestArchiverZipData(t *testing.T) {
	data, err := (&Archiver{}).Marshal(map[string]interface{}{"k": int64(-7), "on": true})
	if err != nil {
		t.Fatal(err)
	}
	var zipped bytes.Buffer
	zw := gzip.NewWriter(&zipped)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	archiver := &Archiver{}
	if err := archiver.ReadFromZipData(zipped.Bytes()); err != nil {
		t.Fatal(err)
	}
	got, err := archiver.Unarchive()
	if err != nil {
		t.Fatal(err)
	}
	want := NewDictionary()
	want.Set("k", Int(-7))
	want.Set("on", Boolean(true))
	if !Equal(got, want) {
		t.Errorf("got %s, want %s", Describe(got), Describe(want))
	}
}

const cyclicArchive = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>$archiver</key>
	<string>NSKeyedArchiver</string>
	<key>$objects</key>
	<array>
		<string>$null</string>
		<dict>
			<key>$class</key>
			<dict><key>CF$UID</key><integer>3</integer></dict>
			<key>friend</key>
			<dict><key>CF$UID</key><integer>1</integer></dict>
			<key>name</key>
			<dict><key>CF$UID</key><integer>2</integer></dict>
		</dict>
		<string>Bob</string>
		<dict>
			<key>$classes</key>
			<array><string>Person</string><string>NSObject</string></array>
			<key>$classname</key>
			<string>Person</string>
		</dict>
	</array>
	<key>$top</key>
	<dict>
		<key>root</key>
		<dict><key>CF$UID</key><integer>1</integer></dict>
	</dict>
	<key>$version</key>
	<integer>100000</integer>
</dict>
</plist>
`

func TestArchiverUnarchiveCycle(t *testing.T) {
	archiver := &Archiver{}
	if err := archiver.ReadFromData([]byte(cyclicArchive)); err != nil {
		t.Fatal(err)
	}
	pval, err := archiver.Unarchive()
	if err != nil {
		t.Fatal(err)
	}
	person, ok := pval.(*Dictionary)
	if !ok {
		t.Fatalf("root is %T", pval)
	}
	if name, _ := person.Get("name"); name != String("Bob") {
		t.Errorf("name = %s", Describe(name))
	}
	if class, _ := person.Get("$class"); class != String("Person") {
		t.Errorf("$class = %s", Describe(class))
	}
	if friend, _ := person.Get("friend"); friend != Value(person) {
		t.Errorf("friend is not the person itself")
	}
}

type archivedPoint struct {
	X int
	Y int
}

func TestArchiverFoundationClass(t *testing.T) {
	ArchiverAddFoundation(reflect.TypeOf(archivedPoint{}), "Point", "Point", "NSObject")

	data, err := (&Archiver{}).Marshal([]archivedPoint{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatal(err)
	}
	archiver := &Archiver{}
	if err := archiver.ReadFromData(data); err != nil {
		t.Fatal(err)
	}
	pval, err := archiver.Unarchive()
	if err != nil {
		t.Fatal(err)
	}
	points := pval.(*Array).Values
	if len(points) != 2 {
		t.Fatalf("got %s", Describe(pval))
	}
	if class, _ := points[0].(*Dictionary).Get("$class"); class != String("Point") {
		t.Errorf("$class = %s", Describe(class))
	}

	var out []archivedPoint
	if err := archiver.Unmarshal(&out); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]archivedPoint{{1, 2}, {3, 4}}, out); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestArchiverMalformed(t *testing.T) {
	tests := []struct {
		name string
		doc  *Dictionary
	}{
		{"no objects", NewDictionary()},
		{"no top", func() *Dictionary {
			d := NewDictionary()
			d.Set("$objects", NewArray(String("$null")))
			return d
		}()},
		{"root not a UID", func() *Dictionary {
			top := NewDictionary()
			top.Set("root", Int(1))
			d := NewDictionary()
			d.Set("$objects", NewArray(String("$null")))
			d.Set("$top", top)
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeBinary(tt.doc)
			if err != nil {
				t.Fatal(err)
			}
			err = (&Archiver{}).ReadFromData(data)
			var ferr *FormatError
			if !errors.As(err, &ferr) {
				t.Fatalf("got %v, want a FormatError", err)
			}
		})
	}
}

func TestArchiverDanglingReference(t *testing.T) {
	archiver := &Archiver{Objects: []Value{String("$null")}, Top: UID{9}}
	_, err := archiver.Unarchive()
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("got %v, want a FormatError", err)
	}
}

func TestArchiverRejectsCycles(t *testing.T) {
	arr := NewArray()
	arr.Values = append(arr.Values, arr)
	if _, err := (&Archiver{}).Marshal(arr); err == nil {
		t.Fatal("archived a cyclic array")
	}
}
