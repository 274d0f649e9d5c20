//go:build !plutobook

package plutoengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledEngine(t *testing.T) {
	assert.False(t, Enabled)
	e, err := New(Options{})
	assert.Error(t, err)
	assert.Nil(t, e)
}
