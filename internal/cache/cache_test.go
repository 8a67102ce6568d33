package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, KeyRaw)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, KeyRaw, "testo"))
	got, ok, err := m.Get(ctx, KeyRaw)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "testo", got)
	assert.NoError(t, m.Close())
}
