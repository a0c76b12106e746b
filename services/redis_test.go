package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"socialfeed/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	conf := config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)}
	client := NewRedisClient(conf)
	defer client.Close()
	require.NoError(t, PingRedis(context.Background(), client))

	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := PingRedis(ctx, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
