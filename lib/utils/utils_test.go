package utils

import (
	"image/color"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColour(t *testing.T) {
	assert.True(t, ColourValidate("#11223344"))
	assert.True(t, ColourValidate("#aaBBccDD"))
	assert.False(t, ColourValidate("#112233"))
	assert.False(t, ColourValidate("#1122334455"))
	assert.False(t, ColourValidate("red"))

	c, err := ColourParse("#ff800001")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 1}, c)

	_, err = ColourParse("#zz")
	assert.Error(t, err)
}

func TestColourVec(t *testing.T) {
	fallback := mgl32.Vec4{0, 0, 0, 1}
	v := ColourVec("#ff000080", fallback)
	assert.InDelta(t, 1.0, v[0], 0.001)
	assert.InDelta(t, 0.0, v[1], 0.001)
	assert.InDelta(t, 128.0/255, v[3], 0.001)
	assert.Equal(t, fallback, ColourVec("", fallback))
}

func TestDeltaTimer(t *testing.T) {
	var d DeltaTimer
	assert.Zero(t, d.Next())

	d.Set(time.Now().Add(-time.Second))
	assert.GreaterOrEqual(t, d.Next(), time.Second)
	assert.Less(t, d.Next(), time.Second)

	d.Reset()
	assert.Zero(t, d.Next())
}
