package plist

import (
	"regexp"
	"strings"
)

var (
	xmlPlistOpenPattern = regexp.MustCompile(`<plist(\s[^>]*)?>`)
	xmlCommentPattern   = regexp.MustCompile(`<!--[\s\S]*?-->`)
)

const xmlPlistClose = "</" + xmlPlistTag + ">"

// xmlNode is an open container on the parser stack. Once the container is
// closed it may be replaced in its parent (a CF$UID dictionary becomes a
// UID), so the node remembers where it was stored.
type xmlNode struct {
	tag   string
	dict  *Dictionary
	array *Array

	parent *xmlNode
	key    string
	index  int
}

func createNode(tag string) *xmlNode {
	if tag == xmlDictTag {
		return &xmlNode{tag: tag, dict: NewDictionary()}
	}
	return &xmlNode{tag: tag, array: &Array{}}
}

func (n *xmlNode) value() Value {
	if n.dict != nil {
		return n.dict
	}
	return n.array
}

// pushToObject stores value in node: appended to an array, or under key in
// a dictionary.
func pushToObject(value Value, node *xmlNode, key *string) error {
	switch {
	case node.array != nil:
		node.array.Values = append(node.array.Values, value)
	case node.dict != nil:
		if key == nil {
			return xmlError(node.tag, "missing key for dictionary value")
		}
		node.dict.Set(*key, value)
	default:
		return xmlError(node.tag, "Unsupported current content type")
	}
	return nil
}

// maybeUID turns a dictionary of the form {CF$UID: integer|data} into a UID.
func maybeUID(dict *Dictionary) (UID, bool) {
	if dict.Len() != 1 || dict.keys[0] != xmlUIDKey {
		return nil, false
	}
	switch v := dict.values[0].(type) {
	case Integer:
		u, err := MakeUID(v)
		return u, err == nil
	case Data:
		return UID(v), len(v) > 0
	}
	return nil, false
}

type xmlPlistParser struct {
	scanner *tagScanner
}

// decodePlistContent returns the text inside the <plist> element.
func decodePlistContent(text string) (string, error) {
	text = xmlCommentPattern.ReplaceAllString(text, "")
	loc := xmlPlistOpenPattern.FindStringIndex(text)
	if loc == nil {
		return "", &FormatError{Format: "XML", Msg: "missing <plist> element"}
	}
	end := strings.LastIndex(text, xmlPlistClose)
	if end < loc[1] {
		return "", &FormatError{Format: "XML", Msg: "missing </plist> closing tag"}
	}
	return text[loc[1]:end], nil
}

func newXMLPlistParser(content string) *xmlPlistParser {
	return &xmlPlistParser{scanner: newTagScanner(content)}
}

func (p *xmlPlistParser) decodeTags() (Value, error) {
	tag, ok := p.scanner.next()
	if !ok {
		return nil, xmlError("", "no tags found")
	}
	if tag.closing {
		return nil, xmlError("/"+tag.name, "unexpected closing tag")
	}

	var root Value
	var err error
	switch {
	case tag.isContainer() && tag.selfClosing:
		root = createNode(tag.name).value()
	case tag.isContainer():
		root, err = p.decodeObjects(tag)
	default:
		var content string
		if content, err = p.scanner.decodeTag(tag); err == nil {
			root, err = decodePrimitive(content, tag.name)
		}
	}
	if err != nil {
		return nil, err
	}
	if extra, ok := p.scanner.next(); ok {
		return nil, xmlError(extra.name, "unexpected element after the root value")
	}
	return root, nil
}

// decodeObjects parses the container opened by rootTag with an explicit
// stack of open nodes.
func (p *xmlPlistParser) decodeObjects(rootTag xmlTag) (Value, error) {
	root := createNode(rootTag.name)
	stack := []*xmlNode{root}
	result := root.value()

	for {
		tag, ok := p.scanner.next()
		top := stack[len(stack)-1]
		if !ok {
			return nil, xmlError(top.tag, "missing closing tag")
		}

		if tag.closing {
			if tag.name != top.tag {
				return nil, &XMLParsingError{Tag: "/" + tag.name, Expected: top.tag, Msg: "Mismatched tags"}
			}
			stack = stack[:len(stack)-1]
			if top.dict != nil {
				if uid, ok := maybeUID(top.dict); ok {
					if top.parent == nil {
						result = uid
					} else {
						top.parent.replace(top, uid)
					}
				}
			}
			if len(stack) == 0 {
				return result, nil
			}
			continue
		}

		var err error
		if top.dict != nil {
			if tag.name != xmlKeyTag {
				return nil, xmlError(tag.name, "dict requires key as first tag")
			}
			err = p.decodeKey(tag, top, &stack)
		} else {
			err = p.decodeElement(tag, top, &stack, nil)
		}
		if err != nil {
			return nil, err
		}
	}
}

func (n *xmlNode) replace(child *xmlNode, v Value) {
	if n.dict != nil {
		n.dict.Set(child.key, v)
		return
	}
	n.array.Values[child.index] = v
}

// decodeKey reads a <key> and the value element that follows it.
func (p *xmlPlistParser) decodeKey(keyTag xmlTag, node *xmlNode, stack *[]*xmlNode) error {
	key, err := p.scanner.decodeTag(keyTag)
	if err != nil {
		return err
	}
	tag, ok := p.scanner.next()
	if !ok || tag.closing {
		return xmlError(xmlKeyTag, "missing value for key %q", key)
	}
	return p.decodeElement(tag, node, stack, &key)
}

func (p *xmlPlistParser) decodeElement(tag xmlTag, node *xmlNode, stack *[]*xmlNode, key *string) error {
	if tag.isContainer() {
		child := createNode(tag.name)
		if err := pushToObject(child.value(), node, key); err != nil {
			return err
		}
		if tag.selfClosing {
			return nil
		}
		child.parent = node
		if key != nil {
			child.key = *key
		}
		if node.array != nil {
			child.index = len(node.array.Values) - 1
		}
		*stack = append(*stack, child)
		return nil
	}
	content, err := p.scanner.decodeTag(tag)
	if err != nil {
		return err
	}
	v, err := decodePrimitive(content, tag.name)
	if err != nil {
		return err
	}
	return pushToObject(v, node, key)
}
