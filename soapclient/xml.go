package soapclient

import (
	"encoding/xml"
	"strings"
)

// Node is a generic, namespace-stripped representation of an XML element:
// element names become map keys, repeated siblings become a []interface{},
// leaf nodes become strings, and attributes are placed under an "@attrs" key.
// This mirrors the shape every domain extractor's enrichment code expects
// when walking a parsed SOAP Results element.
type Node map[string]interface{}

// parseElement decodes a single XML element (and its subtree) starting at
// the given start token into a Node, stripping namespace prefixes for
// ergonomic field access.
func parseElement(d *xml.Decoder, start xml.StartElement) (Node, error) {
	node := Node{}

	if len(start.Attr) > 0 {
		attrs := map[string]string{}
		for _, a := range start.Attr {
			attrs[localName(a.Name)] = a.Value
		}
		node["@attrs"] = attrs
	}

	var textBuf strings.Builder
	hasChildren := false

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			hasChildren = true
			child, err := parseElement(d, t)
			if err != nil {
				return nil, err
			}
			key := localName(t.Name)
			addChild(node, key, collapseLeaf(child))
		case xml.CharData:
			textBuf.Write(t)
		case xml.EndElement:
			if !hasChildren {
				text := strings.TrimSpace(textBuf.String())
				if text != "" {
					node["#text"] = text
				}
			}
			return node, nil
		}
	}
}

// collapseLeaf turns a Node that is a pure-text leaf with no attributes into
// its plain string value, matching the original element-to-dict behavior
// where childless, attribute-less nodes are recorded as plain text.
func collapseLeaf(n Node) interface{} {
	if len(n) == 1 {
		if text, ok := n["#text"]; ok {
			return text
		}
	}
	if len(n) == 0 {
		return ""
	}
	return n
}

func addChild(node Node, key string, value interface{}) {
	existing, ok := node[key]
	if !ok {
		node[key] = value
		return
	}
	if list, ok := existing.([]interface{}); ok {
		node[key] = append(list, value)
		return
	}
	node[key] = []interface{}{existing, value}
}

func localName(n xml.Name) string {
	return n.Local
}

// ParseDocument decodes a full XML document's root element into a Node.
func ParseDocument(data []byte) (Node, error) {
	d := xml.NewDecoder(strings.NewReader(string(data)))
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return parseElement(d, start)
		}
	}
}

// Find walks a Node's children by a path of local element names, one name per argument,
// ignoring namespace prefixes, and returns the first matching value.
func (n Node) Find(path ...string) (interface{}, bool) {
	var cur interface{} = n
	for _, seg := range path {
		m, ok := cur.(Node)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// String returns the Find result coerced to a string, or "" if absent or not
// a string.
func (n Node) String(path ...string) string {
	v, ok := n.Find(path...)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// List returns the Find result as a []interface{}; a single value is
// wrapped, absent returns nil.
func (n Node) List(path ...string) []interface{} {
	v, ok := n.Find(path...)
	if !ok {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}
