package redis

import (
	"context"
	"strconv"
	"testing"
	"time"

	"melodia-go/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitEnablesLikeLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	require.Nil(t, LikeLocker(time.Second, time.Second))
	require.NoError(t, Init(&config.RedisConfig{Host: mr.Host(), Port: port, PoolSize: 2}))
	t.Cleanup(func() { _ = Close() })
	assert.True(t, Enabled())

	locker := LikeLocker(time.Second, 10*time.Millisecond)
	require.NotNil(t, locker)
	unlock, err := locker.Lock(context.Background(), CommentLikeLockKey(7, 8))
	require.NoError(t, err)
	assert.True(t, mr.Exists(CommentLikeLockKey(7, 8)))
	unlock()

	require.NoError(t, Close())
	assert.False(t, Enabled())
}

func TestInitUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	host := mr.Host()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	err = Init(&config.RedisConfig{Host: host, Port: port})
	assert.Error(t, err)
	assert.False(t, Enabled())
}
