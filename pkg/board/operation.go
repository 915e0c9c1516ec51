package board

import (
	"encoding/json"
	"fmt"
)

// Kind classifies a client operation.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindChild  Kind = "child"
	KindDelete Kind = "delete"
	KindClear  Kind = "clear"
)

// Operation is one decoded client message. Messages are element-shaped JSON
// objects whose "type" selects the operation; any type other than delete,
// update, child or clear creates an element (e.g. "line", "rect", "doc").
type Operation struct {
	Type   string   // raw "type" field
	ID     string   // target element
	Parent string   // parent element, child operations only
	Data   *Element // element or patch, control fields removed as needed
}

// Kind returns the operation kind derived from Type.
func (op *Operation) Kind() Kind {
	switch op.Type {
	case string(KindDelete):
		return KindDelete
	case string(KindUpdate):
		return KindUpdate
	case string(KindChild):
		return KindChild
	case string(KindClear):
		return KindClear
	default:
		return KindCreate
	}
}

// ParseOperation decodes a client message. It fails only when raw is not a
// JSON object.
func ParseOperation(raw []byte) (*Operation, error) {
	data := &Element{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, fmt.Errorf("invalid operation: %w", err)
	}

	op := &Operation{
		Type:   data.Type(),
		ID:     data.ID,
		Parent: data.PayloadString(FieldParent),
		Data:   data,
	}
	if op.Kind() == KindChild {
		data.DeletePayload(FieldType, FieldTool, FieldParent)
	}
	return op, nil
}
