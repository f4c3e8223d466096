package cache

import (
	"context"
	"shop-service/pkg/config"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient(context.Background(), &config.RedisConfig{}))
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, NewRedisClient(context.Background(), &config.RedisConfig{Addr: addr}))
}

func TestNewRedisClientConnects(t *testing.T) {
	mr := miniredis.RunT(t)

	client := NewRedisClient(context.Background(), &config.RedisConfig{Addr: mr.Addr()})
	require.NotNil(t, client)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}
