package plist

import (
	"bufio"
	"encoding/base64"
	"io"
	"runtime"
)

const (
	xmlHEADER     string = `<?xml version="1.0" encoding="UTF-8"?>`
	xmlDOCTYPE           = `<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">`
	xmlArrayTag          = "array"
	xmlDataTag           = "data"
	xmlDateTag           = "date"
	xmlDictTag           = "dict"
	xmlFalseTag          = "false"
	xmlIntegerTag        = "integer"
	xmlKeyTag            = "key"
	xmlPlistTag          = "plist"
	xmlRealTag           = "real"
	xmlStringTag         = "string"
	xmlTrueTag           = "true"
	xmlUIDKey            = "CF$UID"
)

// xmlPlistGenerator writes XML property lists. With no indent the document
// is written on a single line.
type xmlPlistGenerator struct {
	*bufio.Writer

	indent string
	depth  int
	nested map[Value]bool // containers being written
}

func newXMLPlistGenerator(w io.Writer) *xmlPlistGenerator {
	return &xmlPlistGenerator{Writer: bufio.NewWriter(w)}
}

func (p *xmlPlistGenerator) Indent(i string) {
	p.indent = i
}

func (p *xmlPlistGenerator) writeIndent() {
	for i := 0; i < p.depth; i++ {
		p.WriteString(p.indent)
	}
}

func (p *xmlPlistGenerator) writeNewline() {
	if p.indent != "" {
		p.WriteByte('\n')
	}
}

func (p *xmlPlistGenerator) generateDocument(root Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(runtime.Error); ok {
				panic(r)
			}
			err = r.(error)
		}
	}()
	switch root.(type) {
	case nil, Null:
		return xmlError("", "cannot encode a null root")
	}

	p.WriteString(xmlHEADER)
	p.writeNewline()
	p.WriteString(xmlDOCTYPE)
	p.writeNewline()
	p.WriteString(`<` + xmlPlistTag + ` version="1.0">`)
	p.writeNewline()
	p.writePlistValue(root)
	p.WriteString(`</` + xmlPlistTag + `>`)
	p.writeNewline()
	return p.Flush()
}

// element writes one leaf element; value is escaped here.
func (p *xmlPlistGenerator) element(key string, value string) {
	p.writeIndent()
	p.WriteString(encodeTag(key, escapeXML(value)))
	p.writeNewline()
}

func (p *xmlPlistGenerator) open(tag string) {
	p.writeIndent()
	p.WriteString("<" + tag + ">")
	p.writeNewline()
	p.depth++
}

func (p *xmlPlistGenerator) close(tag string) {
	p.depth--
	p.writeIndent()
	p.WriteString("</" + tag + ">")
	p.writeNewline()
}

func (p *xmlPlistGenerator) enter(container Value) {
	if p.nested == nil {
		p.nested = make(map[Value]bool)
	}
	if p.nested[container] {
		panic(xmlError("", "cyclic reference to %s", container.typeName()))
	}
	p.nested[container] = true
}

func (p *xmlPlistGenerator) writeDictionary(dict *Dictionary) {
	p.enter(dict)
	defer delete(p.nested, dict)
	if dict.Len() == 0 {
		p.element(xmlDictTag, "")
		return
	}
	p.open(xmlDictTag)
	for i, k := range dict.keys {
		p.element(xmlKeyTag, k)
		p.writePlistValue(dict.values[i])
	}
	p.close(xmlDictTag)
}

func (p *xmlPlistGenerator) writeArray(container Value, values []Value) {
	p.enter(container)
	defer delete(p.nested, container)
	if len(values) == 0 {
		p.element(xmlArrayTag, "")
		return
	}
	p.open(xmlArrayTag)
	for _, v := range values {
		p.writePlistValue(v)
	}
	p.close(xmlArrayTag)
}

func (p *xmlPlistGenerator) writeData(b []byte) {
	dataBase64 := base64.StdEncoding.EncodeToString(b)
	if p.indent == "" || len(dataBase64) <= 68 {
		p.element(xmlDataTag, dataBase64)
		return
	}
	p.writeIndent()
	p.WriteString("<" + xmlDataTag + ">\n")
	for i := 0; i < len(dataBase64); i += 68 {
		p.writeIndent()
		endoff := i + 68
		if endoff > len(dataBase64) {
			endoff = len(dataBase64)
		}
		p.WriteString(dataBase64[i:endoff])
		p.WriteString("\n")
	}
	p.writeIndent()
	p.WriteString("</" + xmlDataTag + ">\n")
}

// writeUID uses the CoreFoundation convention of a one-entry CF$UID
// dictionary. UIDs that are not a canonical integer keep their bytes.
func (p *xmlPlistGenerator) writeUID(u UID) {
	p.open(xmlDictTag)
	p.element(xmlKeyTag, xmlUIDKey)
	if n, ok := u.Index(); ok {
		if c, err := MakeUID(Uint(n)); err == nil && string(c) == string(u) {
			p.element(xmlIntegerTag, Uint(n).String())
			p.close(xmlDictTag)
			return
		}
	}
	p.writeData(u)
	p.close(xmlDictTag)
}

func (p *xmlPlistGenerator) writePlistValue(pval Value) {
	switch pval := pval.(type) {
	case String:
		p.element(xmlStringTag, string(pval))
	case Integer:
		p.element(xmlIntegerTag, pval.String())
	case Real:
		p.element(xmlRealTag, formatXMLFloat(float64(pval)))
	case Boolean:
		p.writeIndent()
		p.WriteString(encodeBool(bool(pval)))
		p.writeNewline()
	case Data:
		p.writeData(pval)
	case Date:
		p.element(xmlDateTag, formatXMLDate(pval))
	case UID:
		if len(pval) == 0 {
			panic(&XMLParsingError{Msg: "cannot encode an empty UID", Err: ErrInvalidArgument})
		}
		p.writeUID(pval)
	case *Dictionary:
		p.writeDictionary(pval)
	case *Array:
		p.writeArray(pval, pval.Values)
	case *Set:
		p.writeArray(pval, pval.Values)
	case nil:
		panic(xmlError("", "cannot encode a nil value"))
	default:
		panic(xmlError("", "cannot encode %s values", pval.typeName()))
	}
}
