package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKVStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := NewKVStore()

	_, ok, err := s.Get(ctx, "reports:latest:default:xlsx")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("workbook")
	require.NoError(t, s.Put(ctx, "reports:latest:default:xlsx", value))
	value[0] = 'W'

	got, ok, err := s.Get(ctx, "reports:latest:default:xlsx")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "workbook", string(got))
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Delete(ctx, "reports:latest:default:xlsx"))
	assert.Equal(t, 0, s.Len())
}

func TestKVStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewKVStore()
	assert.ErrorIs(t, s.Put(ctx, "k", nil), context.Canceled)
}
