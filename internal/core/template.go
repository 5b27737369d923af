package core

// template.go implements JSON output templates.
//
// A caller describes the response shape as arbitrary JSON. Any object that
// has both a "sheet" and a "cell" member is an output descriptor; rendering
// replaces it with the computed value (one cell) or a list of values (a
// range), everything else is copied through. Parsing builds a tagged tree
// once, keeping object key order, so rendering is a plain structural walk.

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/JonMunkholm/xlcalc/internal/cellref"
)

type nodeKind int

const (
	scalarNode nodeKind = iota
	objectNode
	arrayNode
	outputNode
)

type node struct {
	kind nodeKind

	raw    json.RawMessage  // scalarNode
	keys   []string         // objectNode, in document order
	fields map[string]*node // objectNode
	items  []*node          // arrayNode
	ids    []string         // outputNode
}

// Template is a parsed output template.
type Template struct {
	root *node
}

// ParseTemplate decodes raw and expands every output descriptor against
// file.
func ParseTemplate(file string, raw []byte) (*Template, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	root, err := decodeNode(dec)
	if err != nil {
		return nil, newError(KindValidation, "VAL007", err, "parameter output_json should be in JSON format")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, validationf("VAL007", "parameter output_json should be in JSON format")
	}

	if err := bindOutputs(file, root); err != nil {
		return nil, err
	}
	return &Template{root: root}, nil
}

func decodeNode(dec *json.Decoder) (*node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		raw, err := json.Marshal(tok)
		if err != nil {
			return nil, err
		}
		return &node{kind: scalarNode, raw: raw}, nil
	}

	switch delim {
	case '{':
		n := &node{kind: objectNode, fields: make(map[string]*node)}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected object key %v", keyTok)
			}
			child, err := decodeNode(dec)
			if err != nil {
				return nil, err
			}
			if _, dup := n.fields[key]; !dup {
				n.keys = append(n.keys, key)
			}
			n.fields[key] = child
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return n, nil

	case '[':
		n := &node{kind: arrayNode}
		for dec.More() {
			child, err := decodeNode(dec)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, child)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %v", delim)
}

// bindOutputs turns descriptor objects into output nodes.
func bindOutputs(file string, n *node) error {
	switch n.kind {
	case objectNode:
		sheetNode, hasSheet := n.fields["sheet"]
		cellNode, hasCell := n.fields["cell"]
		if hasSheet && hasCell {
			sheet, ok1 := stringValue(sheetNode)
			cell, ok2 := stringValue(cellNode)
			if !ok1 || !ok2 {
				return newError(KindParse, "VAL005", nil, "cell ID mistake in output_json: sheet and cell must be strings")
			}
			ids, err := cellref.Expand(file, sheet, cell)
			if err != nil {
				return newError(KindParse, "VAL005", err, "cell ID mistake in output_json")
			}
			*n = node{kind: outputNode, ids: ids}
			return nil
		}
		for _, k := range n.keys {
			if err := bindOutputs(file, n.fields[k]); err != nil {
				return err
			}
		}
	case arrayNode:
		for _, item := range n.items {
			if err := bindOutputs(file, item); err != nil {
				return err
			}
		}
	}
	return nil
}

func stringValue(n *node) (string, bool) {
	if n.kind != scalarNode {
		return "", false
	}
	var s string
	if err := json.Unmarshal(n.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Outputs lists the identifiers of every descriptor in document order.
func (t *Template) Outputs() Outputs {
	var ids Outputs
	var walk func(n *node)
	walk = func(n *node) {
		switch n.kind {
		case outputNode:
			ids = append(ids, n.ids...)
		case objectNode:
			for _, k := range n.keys {
				walk(n.fields[k])
			}
		case arrayNode:
			for _, item := range n.items {
				walk(item)
			}
		}
	}
	walk(t.root)
	return ids
}

// Render writes the template as JSON with descriptors replaced by values
// from res. Identifiers missing from res render as null.
func (t *Template) Render(res Result) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := render(&buf, t.root, res); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func render(buf *bytes.Buffer, n *node, res Result) error {
	switch n.kind {
	case scalarNode:
		buf.Write(n.raw)

	case outputNode:
		values := make([]*float64, len(n.ids))
		for i, id := range n.ids {
			values[i] = res[id]
		}
		var v any = values
		if len(values) == 1 {
			v = values[0]
		}
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(b)

	case objectNode:
		buf.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := render(buf, n.fields[k], res); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	case arrayNode:
		buf.WriteByte('[')
		for i, item := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := render(buf, item, res); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	return nil
}
