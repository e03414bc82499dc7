package scrape

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Mode selects how many matches a field keeps.
type Mode string

const (
	// ModeSingle keeps the first match only.
	ModeSingle Mode = "single"
	// ModeMulti keeps every match.
	ModeMulti Mode = "multi"
)

// Field describes one value to pull out of every matched item.
type Field struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Mode     Mode   `json:"mode"`
	// Attr extracts the named attribute instead of the element text.
	Attr string `json:"attr,omitempty"`
}

// sinks and stores add these columns themselves
var reservedFieldNames = map[string]bool{
	"tags": true,
	"page": true,
}

func (f Field) validate() error {
	if f.Name == "" {
		return fmt.Errorf("field name must not be empty")
	}
	if reservedFieldNames[f.Name] {
		return fmt.Errorf("field name %q is reserved", f.Name)
	}
	if _, err := cascadia.Parse(f.Selector); err != nil {
		return fmt.Errorf("field %q: invalid selector %q: %w", f.Name, f.Selector, err)
	}
	switch f.Mode {
	case ModeSingle, ModeMulti:
	default:
		return fmt.Errorf("field %q: unknown mode %q", f.Name, f.Mode)
	}
	return nil
}

// Placeholder is the value recorded when a single-valued field matches
// nothing inside an item.
func (f Field) Placeholder() string {
	return "No " + f.Name
}

func (f Field) extract(item Selection) Value {
	if f.Mode == ModeMulti {
		matches := item.SelectAll(f.Selector)
		list := make([]string, 0, len(matches))
		for _, m := range matches {
			list = append(list, f.valueOf(m))
		}
		return Value{Multi: true, List: list}
	}

	m, ok := item.SelectFirst(f.Selector)
	if !ok {
		return Value{Text: f.Placeholder()}
	}
	return Value{Text: f.valueOf(m)}
}

func (f Field) valueOf(m Selection) string {
	if f.Attr != "" {
		return strings.TrimSpace(m.AttrOr(f.Attr, ""))
	}
	return m.Text()
}

// FieldSpec is the ordered list of fields every record carries.
type FieldSpec []Field

func (s FieldSpec) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("at least one field is required")
	}
	seen := make(map[string]bool, len(s))
	for _, f := range s {
		if err := f.validate(); err != nil {
			return err
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

func (s FieldSpec) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Value is one extracted field value, either a single string or a list
// of them.
type Value struct {
	Text  string
	List  []string
	Multi bool
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Multi {
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Text)
}

// String flattens the value into a single cell, lists joined with a
// comma and space.
func (v Value) String() string {
	if v.Multi {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}

// FieldValue pairs a field name with its extracted value.
type FieldValue struct {
	Name  string
	Value Value
}

// Record is one extracted item. Fields keeps the order of the
// FieldSpec that produced it, Page is the 1-based page it came from.
type Record struct {
	Fields []FieldValue
	Tags   []string
	Page   int
}

func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// MarshalJSON writes the record as an object whose keys appear in
// field order, followed by tags (when a tag selector was configured)
// and page.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writePair(&buf, f.Name, f.Value); err != nil {
			return nil, err
		}
	}
	if r.Tags != nil {
		if len(r.Fields) > 0 {
			buf.WriteByte(',')
		}
		if err := writePair(&buf, "tags", r.Tags); err != nil {
			return nil, err
		}
	}
	if len(r.Fields) > 0 || r.Tags != nil {
		buf.WriteByte(',')
	}
	if err := writePair(&buf, "page", r.Page); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writePair(buf *bytes.Buffer, name string, value any) error {
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	buf.Write(key)
	buf.WriteByte(':')
	val, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(val)
	return nil
}

// UnmarshalJSON reads a record back with a token decoder so the field
// order from the document survives the round trip.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("record must be a json object")
	}

	var out Record
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("record keys must be strings")
		}
		switch key {
		case "page":
			if err := dec.Decode(&out.Page); err != nil {
				return fmt.Errorf("decode page: %w", err)
			}
		case "tags":
			if err := dec.Decode(&out.Tags); err != nil {
				return fmt.Errorf("decode tags: %w", err)
			}
		default:
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("decode field %q: %w", key, err)
			}
			value, err := decodeValue(raw)
			if err != nil {
				return fmt.Errorf("decode field %q: %w", key, err)
			}
			out.Fields = append(out.Fields, FieldValue{Name: key, Value: value})
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = out
	return nil
}

func decodeValue(raw json.RawMessage) (Value, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return Value{}, err
		}
		if list == nil {
			list = []string{}
		}
		return Value{Multi: true, List: list}, nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return Value{}, err
	}
	return Value{Text: text}, nil
}
