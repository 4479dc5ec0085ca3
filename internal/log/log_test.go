package log

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestGlobalLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := L()
	Set(zap.New(core))
	t.Cleanup(func() { Set(prev) })

	Debug("hidden")
	Info("photo registered", zap.String("image_id", "2018-07-12-bigsite-60-IMG_0001"), zap.Int("inliers", 42))
	With(zap.String("map_id", "m")).Warn("slow")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "photo registered", entries[0].Message)
	assert.Equal(t, int64(42), entries[0].ContextMap()["inliers"])
	assert.Equal(t, "m", entries[1].ContextMap()["map_id"])
}

func TestInit(t *testing.T) {
	prev := L()
	t.Cleanup(func() { Set(prev) })

	require.NoError(t, Init("debug", "json"))
	require.NoError(t, Init("info", "console"))
	assert.Error(t, Init("loud", "json"))
	assert.Error(t, Init("info", "xml"))
}
