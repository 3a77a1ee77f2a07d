package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("one", 1))
	require.NoError(t, r.Register("two", 2))

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegisterRejectsDuplicatesAndEmptyNames(t *testing.T) {
	r := NewBaseRegistry[string]()

	require.NoError(t, r.Register("a", "x"))
	assert.Error(t, r.Register("a", "y"))
	assert.Error(t, r.Register("", "z"))
	assert.Equal(t, 1, r.Count())
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	r := NewBaseRegistry[string]()

	require.NoError(t, r.Register("c", "third"))
	require.NoError(t, r.Register("a", "first"))
	require.NoError(t, r.Register("b", "second"))

	assert.Equal(t, []string{"c", "a", "b"}, r.Names())
	assert.Equal(t, []string{"third", "first", "second"}, r.List())
}

func TestRemove(t *testing.T) {
	r := NewBaseRegistry[int]()

	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))

	require.NoError(t, r.Remove("a"))
	assert.Error(t, r.Remove("a"))
	assert.Equal(t, []string{"b"}, r.Names())
}
