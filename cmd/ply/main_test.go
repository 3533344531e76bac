package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zdypro888/plist"
)

const sampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
	<key>a</key>
	<string>x</string>
	<key>n</key>
	<integer>1</integer>
</dict>
</plist>
`

func sample() *plist.Dictionary {
	d := plist.NewDictionary()
	d.Set("a", plist.String("x"))
	d.Set("n", plist.Int(1))
	return d
}

func runPly(t *testing.T, input []byte, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, run(args, bytes.NewReader(input), &out))
	return out.Bytes()
}

func TestDescribe(t *testing.T) {
	out := runPly(t, []byte(sampleXML))
	assert.Equal(t, "{\"a\": \"x\", \"n\": 1}\n", string(out))
}

func TestConvertBinary(t *testing.T) {
	out := runPly(t, []byte(sampleXML), "-c", "binary")
	require.True(t, bytes.HasPrefix(out, []byte("bplist00")))

	pval, err := plist.DecodeBinary(out)
	require.NoError(t, err)
	assert.True(t, plist.Equal(sample(), pval), plist.Describe(pval))
}

func TestConvertXMLIndent(t *testing.T) {
	bin, err := plist.EncodeBinary(sample())
	require.NoError(t, err)

	out := runPly(t, bin, "-c", "xml", "-I")
	assert.Contains(t, string(out), "\t<key>a</key>\n")

	pval, err := plist.DecodeXML(string(out))
	require.NoError(t, err)
	assert.True(t, plist.Equal(sample(), pval))
}

func TestConvertJSON(t *testing.T) {
	out := runPly(t, []byte(sampleXML), "-c", "json")
	assert.JSONEq(t, `{"a": "x", "n": 1}`, string(out))
}

func TestConvertYAML(t *testing.T) {
	out := runPly(t, []byte(sampleXML), "--convert=yaml")
	assert.Equal(t, "a: x\nn: 1\n", string(out))
}

func TestConvertCBOR(t *testing.T) {
	out := runPly(t, []byte(sampleXML), "-c", "cbor")
	var m map[string]interface{}
	require.NoError(t, cbor.Unmarshal(out, &m))
	assert.Equal(t, "x", m["a"])
	assert.EqualValues(t, 1, m["n"])
}

func TestGzipInput(t *testing.T) {
	var zipped bytes.Buffer
	zw := gzip.NewWriter(&zipped)
	_, err := zw.Write([]byte(sampleXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	out := runPly(t, zipped.Bytes())
	assert.Equal(t, "{\"a\": \"x\", \"n\": 1}\n", string(out))
}

func TestFromJSON(t *testing.T) {
	input := `{
		// who
		"name": "John",
		"age": 30, /* years */
		"tags": ["a", "b"],
	}`
	out := runPly(t, []byte(input), "--from-json", "-c", "xml")

	pval, err := plist.DecodeXML(string(out))
	require.NoError(t, err)
	want := plist.NewDictionary()
	want.Set("name", plist.String("John"))
	want.Set("age", plist.Int(30))
	want.Set("tags", plist.NewArray(plist.String("a"), plist.String("b")))
	assert.True(t, plist.Equal(want, pval), plist.Describe(pval))
}

func TestKeyed(t *testing.T) {
	data, err := (&plist.Archiver{}).Marshal(map[string]interface{}{"k": "v"})
	require.NoError(t, err)

	out := runPly(t, data, "--keyed")
	assert.Equal(t, "{\"k\": \"v\"}\n", string(out))
}

func TestOutputFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.plist")
	outPath := filepath.Join(dir, "out.plist")
	require.NoError(t, os.WriteFile(in, []byte(sampleXML), 0o644))

	var stdout bytes.Buffer
	require.NoError(t, run([]string{"-c", "binary", "-o", outPath, in}, strings.NewReader(""), &stdout))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	pval, err := plist.DecodeBinary(data)
	require.NoError(t, err)
	assert.True(t, plist.Equal(sample(), pval))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		args  []string
	}{
		{"unknown format", sampleXML, []string{"-c", "toml"}},
		{"not a plist", "hello", nil},
		{"keyed json", "{}", []string{"--from-json", "--keyed"}},
		{"two files", sampleXML, []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, run(tt.args, strings.NewReader(tt.input), &out))
		})
	}
}
