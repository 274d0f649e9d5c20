package ffmpegsink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

func TestExpandCmd(t *testing.T) {
	cmd := ExpandCmd("ffmpeg -f rawvideo -pix_fmt {pix_fmt} -s {width}x{height} -r {framerate} -i - out.mkv",
		websource.NewCaps(320, 240))
	assert.Equal(t, "ffmpeg -f rawvideo -pix_fmt bgra -s 320x240 -r 30/1 -i - out.mkv", cmd)
}

func TestFramesReachCommand(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.raw")
	s := New("ffmpeg", &config.FFmpegSinkCfg{Cmd: "cat > " + out})
	require.NoError(t, s.Start(websource.NewCaps(2, 2)))

	frame := bytes.Repeat([]byte{9}, 2*2*4)
	buf := &encdec.Buffer{Data: frame}
	require.NoError(t, s.Consume(buf))

	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(out)
		return err == nil && len(data) >= len(frame)
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, frame, data[:len(frame)])
}

func TestConsumeKeepsOnlyLatest(t *testing.T) {
	s := New("ffmpeg", &config.FFmpegSinkCfg{})
	require.NoError(t, s.Consume(&encdec.Buffer{Data: []byte{1}}))
	require.NoError(t, s.Consume(&encdec.Buffer{Data: []byte{2}}))
	assert.Equal(t, uint64(1), s.Dropped())
	assert.Equal(t, []byte{2}, s.pending)
}

func TestCloseWithoutStart(t *testing.T) {
	s := New("ffmpeg", &config.FFmpegSinkCfg{Cmd: "true"})
	assert.NoError(t, s.Close())
}
