package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaValidation(t *testing.T) {
	schemas := newSchemaSet()

	tests := []struct {
		name   string
		method string
		params map[string]interface{}
		valid  bool
	}{
		{
			name:   "add valid",
			method: "memory.add",
			params: map[string]interface{}{"content": "a note", "tags": []interface{}{"x"}},
			valid:  true,
		},
		{
			name:   "add missing content",
			method: "memory.add",
			params: map[string]interface{}{"project": "webapp"},
			valid:  false,
		},
		{
			name:   "add empty content",
			method: "memory.add",
			params: map[string]interface{}{"content": ""},
			valid:  false,
		},
		{
			name:   "add unknown field",
			method: "memory.add",
			params: map[string]interface{}{"content": "a", "bogus": true},
			valid:  false,
		},
		{
			name:   "add_batch valid",
			method: "memory.add_batch",
			params: map[string]interface{}{"items": []interface{}{map[string]interface{}{"content": "a"}}},
			valid:  true,
		},
		{
			name:   "add_batch empty items",
			method: "memory.add_batch",
			params: map[string]interface{}{"items": []interface{}{}},
			valid:  false,
		},
		{
			name:   "search valid",
			method: "memory.search",
			params: map[string]interface{}{"query": "auth", "limit": 5},
			valid:  true,
		},
		{
			name:   "search missing query",
			method: "memory.search",
			params: map[string]interface{}{"limit": 5},
			valid:  false,
		},
		{
			name:   "search limit too large",
			method: "memory.search",
			params: map[string]interface{}{"query": "auth", "limit": 1000},
			valid:  false,
		},
		{
			name:   "update requires id",
			method: "memory.update",
			params: map[string]interface{}{"content": "x"},
			valid:  false,
		},
		{
			name:   "list no params",
			method: "memory.list",
			params: nil,
			valid:  true,
		},
		{
			name:   "status rejects params",
			method: "memory.status",
			params: map[string]interface{}{"x": 1},
			valid:  false,
		},
		{
			name:   "unknown method skipped",
			method: "something.else",
			params: map[string]interface{}{"anything": true},
			valid:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schemas.validate(tt.method, tt.params)
			if tt.valid {
				assert.Nil(t, err)
			} else {
				require.NotNil(t, err)
				assert.Equal(t, InvalidParams, err.Code)
			}
		})
	}
}
