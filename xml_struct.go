package plist

import (
	"encoding/base64"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// xmlEntities is the fixed escape table shared by both directions.
var xmlEntities = []string{
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
}

var xmlEscaper = strings.NewReplacer(xmlEntities...)

var xmlUnescapes = func() map[string]string {
	m := make(map[string]string, len(xmlEntities)/2+1)
	for i := 0; i < len(xmlEntities); i += 2 {
		m[xmlEntities[i+1]] = xmlEntities[i]
	}
	m["&apos;"] = "'"
	return m
}()

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// unescapeXML reverses escapeXML. Numeric character references are
// understood too; anything else starting with '&' is kept as written.
func unescapeXML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for {
		i := strings.IndexByte(s, '&')
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i:]
		j := strings.IndexByte(s, ';')
		if j < 0 {
			b.WriteString(s)
			return b.String()
		}
		ent := s[:j+1]
		if r, ok := xmlUnescapes[ent]; ok {
			b.WriteString(r)
		} else if r, ok := charRef(ent); ok {
			b.WriteRune(r)
		} else {
			b.WriteString(ent)
		}
		s = s[j+1:]
	}
}

func charRef(ent string) (rune, bool) {
	if !strings.HasPrefix(ent, "&#") {
		return 0, false
	}
	num := ent[2 : len(ent)-1]
	base := 10
	if strings.HasPrefix(num, "x") || strings.HasPrefix(num, "X") {
		num, base = num[1:], 16
	}
	n, err := strconv.ParseUint(num, base, 32)
	if err != nil || !utf8.ValidRune(rune(n)) {
		return 0, false
	}
	return rune(n), true
}

// encodeTag renders one element. value must already be escaped; an empty
// value gives a self-closing tag.
func encodeTag(name, value string) string {
	if value == "" {
		return "<" + name + "/>"
	}
	return "<" + name + ">" + value + "</" + name + ">"
}

func encodeBool(b bool) string {
	if b {
		return encodeTag(xmlTrueTag, "")
	}
	return encodeTag(xmlFalseTag, "")
}

func formatXMLFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatXMLDate(d Date) string {
	return time.Time(d).UTC().Format(time.RFC3339Nano)
}

var xmlTagPattern = regexp.MustCompile(`<(/?)([A-Za-z][A-Za-z0-9_.:-]*)[^>]*?(/?)>`)

type xmlTag struct {
	name        string
	closing     bool
	selfClosing bool
	start, end  int // byte range of the tag in the scanned content
}

func (t xmlTag) isContainer() bool {
	return !t.closing && (t.name == xmlDictTag || t.name == xmlArrayTag)
}

// tagScanner walks the tags of a document in order. lastIndex is the
// offset at which the next search starts.
type tagScanner struct {
	content   string
	lastIndex int
}

func newTagScanner(content string) *tagScanner {
	return &tagScanner{content: content}
}

func (s *tagScanner) next() (xmlTag, bool) {
	m := xmlTagPattern.FindStringSubmatchIndex(s.content[s.lastIndex:])
	if m == nil {
		return xmlTag{}, false
	}
	base := s.lastIndex
	t := xmlTag{
		name:        s.content[base+m[4] : base+m[5]],
		closing:     m[3] > m[2],
		selfClosing: m[7] > m[6],
		start:       base + m[0],
		end:         base + m[1],
	}
	s.lastIndex = t.end
	return t, true
}

// decodeClosingTag consumes the tag that closes open and returns it.
func (s *tagScanner) decodeClosingTag(open xmlTag) (xmlTag, error) {
	t, ok := s.next()
	if !ok {
		return xmlTag{}, xmlError(open.name, "missing closing tag")
	}
	if !t.closing || t.name != open.name {
		got := t.name
		if t.closing {
			got = "/" + got
		}
		return xmlTag{}, &XMLParsingError{Tag: got, Expected: open.name, Msg: "Mismatched tags"}
	}
	return t, nil
}

// decodeTag returns the unescaped text between open and its closing tag.
func (s *tagScanner) decodeTag(open xmlTag) (string, error) {
	if open.selfClosing {
		return "", nil
	}
	closing, err := s.decodeClosingTag(open)
	if err != nil {
		return "", err
	}
	return unescapeXML(s.content[open.end:closing.start]), nil
}

var base64Whitespace = strings.NewReplacer("\t", "", "\n", "", " ", "", "\r", "")

func decodePrimitive(content, tag string) (Value, error) {
	switch tag {
	case xmlStringTag:
		return String(content), nil
	case xmlIntegerTag:
		s := strings.TrimSpace(content)
		if s == "" {
			return nil, xmlError(tag, "empty integer")
		}
		n, err := parseXMLInteger(s)
		if err != nil {
			return nil, &XMLParsingError{Tag: tag, Msg: "invalid integer " + strconv.Quote(s), Err: err}
		}
		return n, nil
	case xmlRealTag:
		s := strings.TrimSpace(content)
		if s == "" {
			return nil, xmlError(tag, "empty real")
		}
		f, err := parseXMLFloat(s)
		if err != nil {
			return nil, &XMLParsingError{Tag: tag, Msg: "invalid real " + strconv.Quote(s), Err: err}
		}
		return Real(f), nil
	case xmlTrueTag:
		return Boolean(true), nil
	case xmlFalseTag:
		return Boolean(false), nil
	case xmlDateTag:
		s := strings.TrimSpace(content)
		t, err := time.ParseInLocation(time.RFC3339, s, time.UTC)
		if err != nil {
			return nil, &XMLParsingError{Tag: tag, Msg: "invalid date " + strconv.Quote(s), Err: err}
		}
		return Date(t.UTC()), nil
	case xmlDataTag:
		b, err := base64.StdEncoding.DecodeString(base64Whitespace.Replace(content))
		if err != nil {
			return nil, &XMLParsingError{Tag: tag, Msg: "invalid base64", Err: err}
		}
		return Data(b), nil
	}
	return nil, xmlError(tag, "Unsupported tag")
}

func parseXMLInteger(s string) (Integer, error) {
	neg := false
	switch s[0] {
	case '-':
		neg, s = true, s[1:]
	case '+':
		s = s[1:]
	}
	base := 10
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s, base = s[2:], 16
	}
	u, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return Integer{}, err
	}
	if !neg {
		return Uint(u), nil
	}
	if u > 1<<63 {
		return Integer{}, &strconv.NumError{Func: "ParseInt", Num: "-" + s, Err: strconv.ErrRange}
	}
	return Int(-int64(u)), nil
}

func parseXMLFloat(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	case "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
