package main

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/coastal-alert/internal/config"
)

func TestFlushRecipientCache(t *testing.T) {
	// Setup
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("ctas:recipients:all", `[{"id":"u1"}]`))
	require.NoError(t, mr.Set("ctas:recipients:zone:north", `[]`))
	require.NoError(t, mr.Set("other:key", "keep"))

	err := flushRecipientCache(context.Background(), config.CacheConfig{RedisAddr: mr.Addr()}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mr.Exists("ctas:recipients:all"))
	assert.False(t, mr.Exists("ctas:recipients:zone:north"))
	assert.True(t, mr.Exists("other:key"))
}

func TestFlushRecipientCacheDisabled(t *testing.T) {
	err := flushRecipientCache(context.Background(), config.CacheConfig{}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, errCacheDisabled)
}
