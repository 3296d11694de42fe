package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergePatch(t *testing.T) {
	tests := []struct {
		name  string
		base  map[string]any
		patch map[string]any
		want  map[string]any
	}{
		{
			name:  "nil base",
			patch: map[string]any{"a": "1"},
			want:  map[string]any{"a": "1"},
		},
		{
			name:  "add overwrite keep",
			base:  map[string]any{"keep": "k", "over": "old"},
			patch: map[string]any{"over": "new", "add": "x"},
			want:  map[string]any{"keep": "k", "over": "new", "add": "x"},
		},
		{
			name:  "nil removes",
			base:  map[string]any{"a": "1", "b": "2"},
			patch: map[string]any{"a": nil},
			want:  map[string]any{"b": "2"},
		},
		{
			name:  "nested merge",
			base:  map[string]any{"gateway": map[string]any{"id": "g1", "fee": "3"}},
			patch: map[string]any{"gateway": map[string]any{"fee": "4"}},
			want:  map[string]any{"gateway": map[string]any{"id": "g1", "fee": "4"}},
		},
		{
			name:  "object replaces scalar",
			base:  map[string]any{"gateway": "legacy"},
			patch: map[string]any{"gateway": map[string]any{"id": "g1"}},
			want:  map[string]any{"gateway": map[string]any{"id": "g1"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MergePatch(tt.base, tt.patch))
		})
	}
}

func TestMergePatch_DoesNotMutateBase(t *testing.T) {
	base := map[string]any{"a": "1"}
	_ = MergePatch(base, map[string]any{"a": "2", "b": "3"})
	assert.Equal(t, map[string]any{"a": "1"}, base)
}
