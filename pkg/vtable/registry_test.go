package vtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func() (Descriptor, error) { return newProcTable(), nil }

	require.NoError(t, r.Register("processes", factory))
	require.NoError(t, r.RegisterDescriptor(&testTable{name: "hosts", schema: procSchema}))
	assert.EqualError(t, r.Register("processes", factory), "table processes already registered")
	assert.EqualError(t, r.Register("", factory), "empty table name")
	assert.EqualError(t, r.Register("x", nil), "nil factory for table x")
	assert.EqualError(t, r.RegisterDescriptor(nil), "nil descriptor")

	assert.Equal(t, []string{"hosts", "processes"}, r.Names())

	f, ok := r.Get("hosts")
	require.True(t, ok)
	d, err := f()
	require.NoError(t, err)
	assert.Equal(t, "hosts", d.Name())

	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestDefaultRegistry(t *testing.T) {
	orig := DefaultRegistry
	defer func() { DefaultRegistry = orig }()
	DefaultRegistry = NewRegistry()

	factory := func() (Descriptor, error) { return newProcTable(), nil }
	require.NoError(t, Register("processes", factory))
	assert.Panics(t, func() { MustRegister("processes", factory) })
	assert.NotPanics(t, func() { MustRegister("other", factory) })
	assert.Equal(t, []string{"other", "processes"}, DefaultRegistry.Names())
}
