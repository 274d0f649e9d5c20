package framequeue

import (
	"bytes"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fosdem/webrendersrc/lib/encdec"
)

func frameOf(size int, fill byte) *encdec.Frame {
	return &encdec.Frame{Data: bytes.Repeat([]byte{fill}, size), Type: encdec.BGRAFrames}
}

func TestTryPopEmpty(t *testing.T) {
	q := New("test-trypop-empty")
	f, ok := q.TryPop()
	assert.False(t, ok)
	assert.Nil(t, f)
}

func TestPushPopOrder(t *testing.T) {
	q := New("test-order")
	q.Push(frameOf(4, 1))
	q.Push(frameOf(4, 2))
	require.Equal(t, 2, q.Len())

	f, ok := q.TryPop()
	require.True(t, ok)
	assert.Equal(t, byte(1), f.Data[0])
	f, ok = q.TryPop()
	require.True(t, ok)
	assert.Equal(t, byte(2), f.Data[0])
	_, ok = q.TryPop()
	assert.False(t, ok)
}

func TestDrainIntoKeepsNewest(t *testing.T) {
	q := New("test-newest")
	released := 0
	q.OnRelease = func(*encdec.Frame) { released++ }

	q.Push(frameOf(8, 1))
	q.Push(frameOf(8, 2))
	q.Push(frameOf(8, 3))

	dst := make([]byte, 8)
	n := q.DrainInto(dst, 8)

	assert.Equal(t, 3, n)
	assert.Equal(t, bytes.Repeat([]byte{3}, 8), dst)
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 3, released)
	assert.Equal(t, float64(1), testutil.ToFloat64(q.metrics.FramesRead))
	assert.Equal(t, float64(2), testutil.ToFloat64(q.metrics.FramesDropped), "superseded frames count as dropped")
}

func TestDrainIntoSkipsMismatchedSize(t *testing.T) {
	q := New("test-mismatch")
	dst := bytes.Repeat([]byte{9}, 16)

	q.Push(frameOf(4, 1))
	n := q.DrainInto(dst, 16)

	assert.Equal(t, 0, n)
	assert.Equal(t, bytes.Repeat([]byte{9}, 16), dst, "destination must not be corrupted")
	assert.Equal(t, float64(1), testutil.ToFloat64(q.metrics.FramesDropped))
}

func TestDrainIntoMixedSizes(t *testing.T) {
	q := New("test-mixed")
	dst := make([]byte, 16)

	q.Push(frameOf(16, 1))
	q.Push(frameOf(4, 2))

	n := q.DrainInto(dst, 16)
	assert.Equal(t, 1, n)
	assert.Equal(t, bytes.Repeat([]byte{1}, 16), dst)
}

func TestDrainIntoEmptyIsIdempotent(t *testing.T) {
	q := New("test-idempotent")
	dst := make([]byte, 4)

	q.Push(frameOf(4, 7))
	q.DrainInto(dst, 4)
	first := bytes.Clone(dst)

	assert.Equal(t, 0, q.DrainInto(dst, 4))
	assert.Equal(t, first, dst)
}

func TestDrainIntoShortDestination(t *testing.T) {
	q := New("test-short-dst")
	dst := make([]byte, 2)
	q.Push(frameOf(4, 1))

	assert.Equal(t, 0, q.DrainInto(dst, 4))
	assert.Equal(t, []byte{0, 0}, dst)
}

func TestClear(t *testing.T) {
	q := New("test-clear")
	released := 0
	q.OnRelease = func(*encdec.Frame) { released++ }
	q.Push(frameOf(4, 1))
	q.Push(frameOf(4, 2))

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 2, released)
}

// Every frame pushed before the reader's final empty TryPop must have
// been observed, in order, without tearing.
func TestConcurrentPushAndPop(t *testing.T) {
	const total = 2000
	const size = 64
	q := New("test-concurrent")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range total {
			f := frameOf(size, byte(i))
			f.ID = uint64(i)
			q.Push(f)
		}
	}()

	var seen []uint64
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	finished := false
	for !finished {
		select {
		case <-done:
			finished = true
		default:
		}
		for {
			f, ok := q.TryPop()
			if !ok {
				break
			}
			require.Equal(t, bytes.Repeat([]byte{byte(f.ID)}, size), f.Data)
			seen = append(seen, f.ID)
		}
	}

	require.Len(t, seen, total)
	for i, id := range seen {
		assert.Equal(t, uint64(i), id)
	}
}
