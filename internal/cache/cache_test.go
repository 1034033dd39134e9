package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelnormalizer/internal/ordered"
)

func TestNilClientIsAlwaysAMiss(t *testing.T) {
	var c *Client
	ctx := context.Background()

	data, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.SetRepresentation(ctx, "k", ordered.New[any](), time.Minute))

	rep, ok := c.GetRepresentation(ctx, "k")
	assert.False(t, ok)
	assert.Nil(t, rep)
}

func TestUnreachableRedisFailsSafe(t *testing.T) {
	c := New("127.0.0.1:1", "", 0, WithPrefix("test:"))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, data)
	assert.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.Error(t, c.Ping(ctx))
}

func TestRecordKey(t *testing.T) {
	assert.Equal(t, "record:cards:42", RecordKey("cards", "42", nil))
	assert.Equal(t, "record:cards:42:account,account.cards", RecordKey("cards", "42", []string{"account", "account.cards"}))
}

func TestKeyPrefix(t *testing.T) {
	c := New("127.0.0.1:1", "", 0, WithPrefix("mn:"))
	defer c.Close()
	assert.Equal(t, "mn:record:cards:1", c.key(RecordKey("cards", "1", nil)))
}
