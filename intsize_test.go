package plist

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestUintWidth(t *testing.T) {
	tests := []struct {
		n    uint64
		want int
	}{
		{0, 1},
		{math.MaxUint8, 1},
		{math.MaxUint8 + 1, 2},
		{math.MaxUint16, 2},
		{math.MaxUint16 + 1, 4},
		{math.MaxUint32, 4},
		{math.MaxUint32 + 1, 8},
		{math.MaxInt64, 8},
		{math.MaxInt64 + 1, 16},
		{math.MaxUint64, 16},
	}
	for _, tt := range tests {
		if got := uintWidth(tt.n); got != tt.want {
			t.Errorf("uintWidth(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
	if got := intWidth(Int(-1)); got != 8 {
		t.Errorf("intWidth(-1) = %d, want 8", got)
	}
	if got := intWidth(Int(math.MinInt64)); got != 8 {
		t.Errorf("intWidth(MinInt64) = %d, want 8", got)
	}
}

func TestCheckSafeInteger(t *testing.T) {
	if err := checkSafeInteger(maxSafeInteger, "n"); err != nil {
		t.Errorf("2^53-1: %v", err)
	}
	err := checkSafeInteger(maxSafeInteger+1, "n")
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("2^53: got %v, want ErrOutOfRange", err)
	}
}

func TestFixedIntRoundTrip(t *testing.T) {
	tests := []struct {
		width int
		value uint64
		want  []byte
	}{
		{1, 0xAB, []byte{0xAB}},
		{2, 0x0102, []byte{0x01, 0x02}},
		{4, 0x01020304, []byte{0x01, 0x02, 0x03, 0x04}},
		{8, 0x0102030405060708, []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		{16, 5, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 5}},
	}
	for _, tt := range tests {
		buf := make([]byte, tt.width+2)
		if err := writeFixedInt(buf, tt.value, tt.width, 1); err != nil {
			t.Fatalf("width %d: %v", tt.width, err)
		}
		if diff := cmp.Diff(tt.want, buf[1:1+tt.width]); diff != "" {
			t.Errorf("width %d (-want +got):\n%s", tt.width, diff)
		}
		got, err := readFixedInt(buf, tt.width, 1)
		if err != nil {
			t.Fatalf("width %d: %v", tt.width, err)
		}
		if got != tt.value {
			t.Errorf("width %d: read %#x, want %#x", tt.width, got, tt.value)
		}
	}
}

func TestReadFixedIntHighHalf(t *testing.T) {
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0, 0, 0x01, 0x00}
	got, err := readFixedInt(buf, 16, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x100 {
		t.Errorf("got %#x, want the low half 0x100", got)
	}
}

func TestFixedIntErrors(t *testing.T) {
	buf := make([]byte, 8)
	for _, width := range []int{0, 3, 5, 32} {
		if err := writeFixedInt(buf, 1, width, 0); !errors.Is(err, ErrUnsupportedSize) {
			t.Errorf("write width %d: got %v", width, err)
		}
		if _, err := readFixedInt(buf, width, 0); !errors.Is(err, ErrUnsupportedSize) {
			t.Errorf("read width %d: got %v", width, err)
		}
		if _, err := appendFixedInt(nil, 1, width); !errors.Is(err, ErrUnsupportedSize) {
			t.Errorf("append width %d: got %v", width, err)
		}
	}

	var perr *BinaryParsingError
	if err := writeFixedInt(buf, 1, 4, 6); !errors.As(err, &perr) {
		t.Errorf("write past end: got %v", err)
	}
	if _, err := readFixedInt(buf, 8, 1); !errors.As(err, &perr) {
		t.Errorf("read past end: got %v", err)
	}
	if _, err := readFixedInt(buf, 1, -1); !errors.As(err, &perr) {
		t.Errorf("negative offset: got %v", err)
	}
}
