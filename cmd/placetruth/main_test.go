package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"argos/internal/region"
)

func TestParseBounds(t *testing.T) {
	b, err := parseBounds("45.0, 44.9, -83.0, -83.1")
	require.NoError(t, err)
	assert.Equal(t, region.Bounds{North: 45.0, South: 44.9, East: -83.0, West: -83.1}, b)

	_, err = parseBounds("45,44.9,-83")
	assert.Error(t, err)
	_, err = parseBounds("45,44.9,-83,west")
	assert.Error(t, err)
}

func TestBuildFrameNeedsTarget(t *testing.T) {
	_, _, err := buildFrame(nil, options{})
	assert.Error(t, err)

	f, isImage, err := buildFrame(nil, options{bounds: "45,44.9,-83,-83.1"})
	require.NoError(t, err)
	assert.False(t, isImage)
	assert.InDelta(t, 44.95, f.Center().Lat, 1e-12)
}
