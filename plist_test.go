package plist

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestMakeUID(t *testing.T) {
	tests := []struct {
		name string
		from interface{}
		want UID
	}{
		{"zero", 0, UID{0}},
		{"byte", uint8(255), UID{0xFF}},
		{"two bytes", 256, UID{0x01, 0x00}},
		{"four bytes", int64(70000), UID{0x00, 0x01, 0x11, 0x70}},
		{"eight bytes", uint64(1) << 40, UID{0, 0, 1, 0, 0, 0, 0, 0}},
		{"max", uint64(math.MaxUint64), UID{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"integer", Uint(3), UID{3}},
		{"string", "ab", UID{'a', 'b'}},
		{"String", String("ab"), UID{'a', 'b'}},
		{"bytes", []byte{9, 8}, UID{9, 8}},
		{"data", Data{7}, UID{7}},
		{"uid", UID{1, 2, 3}, UID{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MakeUID(tt.from)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}

	for _, bad := range []interface{}{-1, Int(-1), "", []byte{}, 1.5, nil, true} {
		if _, err := MakeUID(bad); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("MakeUID(%#v): got %v, want ErrInvalidArgument", bad, err)
		}
	}
}

func TestMakeUIDCopies(t *testing.T) {
	b := []byte{1, 2}
	u, err := MakeUID(b)
	if err != nil {
		t.Fatal(err)
	}
	b[0] = 9
	if u[0] != 1 {
		t.Error("UID shares memory with its source")
	}
}

func TestDecoderFormat(t *testing.T) {
	d := NewDictionary()
	d.Set("k", String("v"))

	for _, format := range []int{XMLFormat, BinaryFormat} {
		var buf bytes.Buffer
		if err := NewEncoderForFormat(&buf, format).Encode(d); err != nil {
			t.Fatal(err)
		}
		dec := NewDecoder(&buf)
		got, err := dec.DecodeValue()
		if err != nil {
			t.Fatal(err)
		}
		if dec.Format != format {
			t.Errorf("Format = %s, want %s", FormatNames[dec.Format], FormatNames[format])
		}
		if !Equal(d, got) {
			t.Errorf("%s: got %s", FormatNames[format], Describe(got))
		}
	}
}

func TestDecoderErrors(t *testing.T) {
	// A bplist header commits to the binary format.
	_, err := NewDecoder(strings.NewReader("bplist00garbage")).DecodeValue()
	var perr *BinaryParsingError
	if !errors.As(err, &perr) {
		t.Errorf("got %v, want a BinaryParsingError", err)
	}

	dec := NewDecoder(strings.NewReader("not a plist"))
	_, err = dec.DecodeValue()
	var ferr *FormatError
	if !errors.As(err, &ferr) {
		t.Errorf("got %v, want a FormatError", err)
	}
	if dec.Format != InvalidFormat {
		t.Errorf("Format = %s after a failed decode", FormatNames[dec.Format])
	}
}

func TestEncoderUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := NewEncoderForFormat(&buf, InvalidFormat).Encode(String("x"))
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("got %v", err)
	}
}

func TestNewEncoderIsXML(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(map[string]int{"a": 1}); err != nil {
		t.Fatal(err)
	}
	want := xmlPrologue + `<plist version="1.0"><dict><key>a</key><integer>1</integer></dict></plist>`
	if buf.String() != want {
		t.Errorf("got %s", buf.String())
	}
}

func TestToGo(t *testing.T) {
	when := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	d := NewDictionary()
	d.Set("null", Null{})
	d.Set("date", Date(when))
	d.Set("data", Data{1})
	d.Set("uid", UID{2})
	d.Set("set", NewSet(String("s")))
	want := map[string]interface{}{
		"null": nil,
		"date": when,
		"data": []byte{1},
		"uid":  UID{2},
		"set":  []interface{}{"s"},
	}
	if diff := cmp.Diff(want, ToGo(d)); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}

	cyclic := NewArray(Int(1))
	cyclic.Values = append(cyclic.Values, cyclic)
	if diff := cmp.Diff([]interface{}{int64(1), nil}, ToGo(cyclic)); diff != "" {
		t.Errorf("cycle (-want +got):\n%s", diff)
	}
}

func TestConvertToJSON(t *testing.T) {
	d := NewDictionary()
	d.Set("name", String("John"))
	d.Set("age", Int(30))
	d.Set("tags", NewArray(String("a")))
	d.Set("blob", Data("hi"))
	for _, format := range []int{XMLFormat, BinaryFormat} {
		data, err := Marshal(d, format)
		if err != nil {
			t.Fatal(err)
		}
		got, err := ConvertToJSON(data)
		if err != nil {
			t.Fatal(err)
		}
		want := `{"age":30,"blob":"aGk=","name":"John","tags":["a"]}`
		if string(got) != want {
			t.Errorf("%s: got %s, want %s", FormatNames[format], got, want)
		}
	}

	data, err := Marshal(NewArray(Real(math.NaN())), BinaryFormat)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ConvertToJSON(data); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("NaN: got %v, want ErrOutOfRange", err)
	}
}
