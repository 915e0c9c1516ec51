package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOperation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind Kind
		id   string
	}{
		{"line creates", `{"type":"line","id":"l1","size":3}`, KindCreate, "l1"},
		{"missing type creates", `{"id":"x"}`, KindCreate, "x"},
		{"update", `{"type":"update","id":"r1","x":5}`, KindUpdate, "r1"},
		{"delete", `{"type":"delete","id":"r1"}`, KindDelete, "r1"},
		{"clear", `{"type":"clear"}`, KindClear, ""},
		{"child", `{"type":"child","parent":"l1","x":1,"y":2}`, KindChild, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := ParseOperation([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, op.Kind())
			assert.Equal(t, tt.id, op.ID)
		})
	}
}

func TestParseChildOperation(t *testing.T) {
	op, err := ParseOperation([]byte(`{"type":"child","parent":"l1","tool":"pencil","x":1,"y":2}`))
	require.NoError(t, err)

	assert.Equal(t, "l1", op.Parent)
	assert.Equal(t, "child", op.Type)
	assert.Empty(t, op.Data.Payload, "control fields are stripped from the child")
	assert.Equal(t, 1.0, *op.Data.X)
}

func TestParseOperationKeepsCreatePayload(t *testing.T) {
	op, err := ParseOperation([]byte(`{"type":"doc","id":"d1","data":"aGVsbG8="}`))
	require.NoError(t, err)
	assert.Equal(t, "doc", op.Data.Type())
	assert.Equal(t, "aGVsbG8=", op.Data.PayloadString("data"))
}

func TestParseOperationRejectsNonObjects(t *testing.T) {
	_, err := ParseOperation([]byte(`[1,2]`))
	assert.Error(t, err)
	_, err = ParseOperation([]byte(`not json`))
	assert.Error(t, err)
}
