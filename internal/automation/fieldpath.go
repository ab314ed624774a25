package automation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FieldPath is a non-empty dotted path into the state, such as
// eventNow.custom.lighting.
type FieldPath []string

// ParseFieldPath splits s on dots. Every segment must be a non-empty
// identifier of letters, digits, '_' or '-'.
func ParseFieldPath(s string) (FieldPath, error) {
	if s == "" {
		return nil, errors.New("empty field path")
	}
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("field path %q has an empty segment", s)
		}
		for _, r := range p {
			if !isIdentRune(r) {
				return nil, fmt.Errorf("field path %q contains %q", s, r)
			}
		}
	}
	return FieldPath(parts), nil
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '-' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func (p FieldPath) String() string { return strings.Join(p, ".") }

// Resolve walks the decoded state tree. found is false when any segment is
// missing; a present null resolves to nil with found true.
func (p FieldPath) Resolve(tree any) (value any, found bool) {
	cur := tree
	for _, seg := range p {
		switch node := cur.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cur, true
}

// customField reports the label when the path addresses an event's
// custom field value.
func (p FieldPath) customField() (string, bool) {
	if len(p) == 3 && (p[0] == "eventNow" || p[0] == "eventNext") && p[1] == "custom" {
		return p[2], true
	}
	return "", false
}

// stateTree decodes v into the generic tree paths resolve against.
// Numbers stay json.Number so integers keep full precision.
func stateTree(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return tree, nil
}

// stringValue renders a resolved value for comparison and templates.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
