package nullsink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/pipeline"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

func TestCountsFrames(t *testing.T) {
	n := New("discard", &config.NullSinkCfg{})
	require.NoError(t, n.Start(websource.NewCaps(2, 2)))

	for i := uint64(0); i < 10; i++ {
		require.NoError(t, n.Consume(&encdec.Buffer{Offset: i}))
	}
	assert.Equal(t, uint64(10), n.Frames())
	assert.Equal(t, uint64(9), n.LastOffset())
	assert.NoError(t, n.Close())
}

func TestStopAfter(t *testing.T) {
	n := New("discard", &config.NullSinkCfg{StopAfter: 2})
	assert.NoError(t, n.Consume(&encdec.Buffer{}))
	assert.ErrorIs(t, n.Consume(&encdec.Buffer{}), pipeline.ErrShutdown)
}
