package experts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consilium/pkg/errors"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()

	m := newStub("technical")
	require.NoError(t, r.Register(m))

	got, ok := r.Get("technical")
	require.True(t, ok)
	assert.Equal(t, "technical", got.Descriptor().Name)
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get("unknown")
	assert.False(t, ok)
}

func TestRegistry_DuplicateNameRejected(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newStub("sentiment")))

	err := r.Register(newStub("sentiment"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDuplicateModule)
	assert.Equal(t, 1, r.Len(), "failed registration must not change the catalog")
}

func TestRegistry_EmptyNameRejected(t *testing.T) {
	r := NewRegistry()

	err := r.Register(newStub(""))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestRegistry_RegistrationOrderPreserved(t *testing.T) {
	r := NewRegistry()

	for _, name := range []string{"technical", "sentiment", "cycles"} {
		require.NoError(t, r.Register(newStub(name)))
	}

	assert.Equal(t, []string{"technical", "sentiment", "cycles"}, r.Names())

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "technical", all[0].Descriptor().Name)
	assert.Equal(t, "cycles", all[2].Descriptor().Name)

	descs := r.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, "sentiment", descs[1].Name)
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(newStub("technical")))
	require.NoError(t, r.Register(newStub("sentiment")))
	require.NoError(t, r.Register(newStub("cycles")))

	require.NoError(t, r.Unregister("sentiment"))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"technical", "cycles"}, r.Names())

	_, ok := r.Get("sentiment")
	assert.False(t, ok)

	err := r.Unregister("sentiment")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrModuleNotFound)
}
