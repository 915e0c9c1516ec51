package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// JSON field names with structural meaning. Every other field is payload.
const (
	FieldID       = "id"
	FieldTime     = "time"
	FieldSize     = "size"
	FieldX        = "x"
	FieldY        = "y"
	FieldOpacity  = "opacity"
	FieldChildren = "_children"
	FieldType     = "type"
	FieldTool     = "tool"
	FieldParent   = "parent"
)

// Element is one drawable object on a board (line, image, shape...).
//
// Structural fields are typed; nil pointers mean the field is absent. A nil
// Children slice means there is no _children field, an empty non-nil slice
// means the field is present but empty. Everything else the client sent is
// kept verbatim in Payload.
type Element struct {
	ID       string
	Time     int64 // Unix milliseconds, stamped by the store
	Size     *int
	X        *float64
	Y        *float64
	Opacity  *float64
	Children []*Element
	Payload  map[string]json.RawMessage
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// UnmarshalJSON decodes an element leniently. Structural fields that do not
// parse are decoded to values the validator later coerces; decoding only fails
// when data is not a JSON object.
func (e *Element) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("element must be a JSON object: %w", err)
	}

	*e = Element{}
	for key, value := range raw {
		switch key {
		case FieldID:
			e.ID = decodeID(value)
		case FieldTime:
			e.Time = decodeTime(value)
		case FieldSize:
			e.Size = Int(parseIntPrefix(value))
		case FieldX:
			e.X = Float(parseFloatPrefix(value))
		case FieldY:
			e.Y = Float(parseFloatPrefix(value))
		case FieldOpacity:
			e.Opacity = Float(toNumber(value))
		case FieldChildren:
			e.Children = decodeChildren(value)
		default:
			if e.Payload == nil {
				e.Payload = make(map[string]json.RawMessage)
			}
			e.Payload[key] = value
		}
	}
	return nil
}

// MarshalJSON encodes the element with keys in sorted order. Absent fields are
// omitted and non-finite numbers are never emitted.
func (e Element) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(e.Payload)+7)
	for key, value := range e.Payload {
		out[key] = value
	}

	if e.ID != "" {
		out[FieldID] = e.ID
	}
	if e.Time != 0 {
		out[FieldTime] = e.Time
	}
	if e.Size != nil {
		out[FieldSize] = *e.Size
	}
	putFinite(out, FieldX, e.X)
	putFinite(out, FieldY, e.Y)
	putFinite(out, FieldOpacity, e.Opacity)

	if e.Children != nil {
		children := make([]*Element, 0, len(e.Children))
		for _, child := range e.Children {
			if child != nil {
				children = append(children, child)
			}
		}
		out[FieldChildren] = children
	}

	return json.Marshal(out)
}

func putFinite(out map[string]interface{}, key string, v *float64) {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return
	}
	out[key] = *v
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}

	c := &Element{ID: e.ID, Time: e.Time}
	if e.Size != nil {
		c.Size = Int(*e.Size)
	}
	if e.X != nil {
		c.X = Float(*e.X)
	}
	if e.Y != nil {
		c.Y = Float(*e.Y)
	}
	if e.Opacity != nil {
		c.Opacity = Float(*e.Opacity)
	}
	if e.Children != nil {
		c.Children = make([]*Element, len(e.Children))
		for i, child := range e.Children {
			c.Children[i] = child.Clone()
		}
	}
	if e.Payload != nil {
		c.Payload = make(map[string]json.RawMessage, len(e.Payload))
		for key, value := range e.Payload {
			c.Payload[key] = append(json.RawMessage(nil), value...)
		}
	}
	return c
}

// Merge copies every field present in patch onto e. Fields absent from patch
// are left untouched. _children is replaced as a whole when present. ID and
// Time are owned by the store and never taken from the patch.
func (e *Element) Merge(patch *Element) {
	if patch == nil {
		return
	}
	p := patch.Clone()

	if p.Size != nil {
		e.Size = p.Size
	}
	if p.X != nil {
		e.X = p.X
	}
	if p.Y != nil {
		e.Y = p.Y
	}
	if p.Opacity != nil {
		e.Opacity = p.Opacity
	}
	if p.Children != nil {
		e.Children = p.Children
	}
	if len(p.Payload) > 0 {
		if e.Payload == nil {
			e.Payload = make(map[string]json.RawMessage, len(p.Payload))
		}
		for key, value := range p.Payload {
			e.Payload[key] = value
		}
	}
}

// Type returns the element's payload "type" (e.g. "line", "doc"), or "" when
// it is missing or not a string.
func (e *Element) Type() string {
	return e.PayloadString(FieldType)
}

// PayloadString returns a payload field decoded as a string, or "".
func (e *Element) PayloadString(key string) string {
	if e == nil {
		return ""
	}
	raw, ok := e.Payload[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SetPayload JSON-encodes v into the payload field key.
func (e *Element) SetPayload(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload field %q: %w", key, err)
	}
	if e.Payload == nil {
		e.Payload = make(map[string]json.RawMessage)
	}
	e.Payload[key] = raw
	return nil
}

// DeletePayload removes the given payload fields.
func (e *Element) DeletePayload(keys ...string) {
	for _, key := range keys {
		delete(e.Payload, key)
	}
}

func decodeID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func decodeTime(raw json.RawMessage) int64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int64(f)
}

// decodeChildren turns any non-array into an empty (present) sequence and
// drops entries that are not JSON objects.
func decodeChildren(raw json.RawMessage) []*Element {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []*Element{}
	}

	children := make([]*Element, 0, len(items))
	for _, item := range items {
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			continue
		}
		child := &Element{}
		if err := json.Unmarshal(item, child); err != nil {
			continue
		}
		children = append(children, child)
	}
	return children
}
