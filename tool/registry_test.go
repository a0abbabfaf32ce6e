package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(ctx context.Context, args map[string]any) (any, error) { return nil, nil }

func TestRegistryAddValidation(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Add(Tool{}, noop), ErrMissingName)
	assert.ErrorIs(t, r.Add(Tool{Name: "x"}, nil), ErrNilHandler)

	require.NoError(t, r.Add(Tool{Name: "x"}, noop))
	assert.ErrorIs(t, r.Add(Tool{Name: "x"}, noop), ErrDuplicate)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(Tool{Name: "x"}, noop))
	require.NoError(t, r.Remove("x"))
	assert.ErrorIs(t, r.Remove("x"), ErrNotRegistered)

	_, ok := r.Get("x")
	assert.False(t, ok)
}

func TestRegistryListOrderAndType(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(Tool{Name: "b"}, noop))
	require.NoError(t, r.Add(Tool{Name: "a"}, noop))
	require.NoError(t, r.Add(Tool{Name: "c", Type: "something_else"}, noop))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, "a", list[1].Name)
	assert.Equal(t, "c", list[2].Name)
	for _, def := range list {
		assert.Equal(t, "function", def.Type)
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(Tool{Name: "x"}, noop))
	r.Clear()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.List())
}
