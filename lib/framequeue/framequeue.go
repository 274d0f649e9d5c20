package framequeue

import (
	"log/slog"
	"sync"

	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/metrics"
)

// Queue hands painted frames from the browser engine over to the pipeline.
// It has a single writer (whatever thread the engine paints on) and a
// single reader (the pipeline pull loop). Pushing never blocks and the
// queue never refuses a frame: the reader drains eagerly and only keeps
// the newest frame, so the backlog is dropped in favour of latency.
type Queue struct {
	Name string

	// OnRelease, if set, is called for every frame that leaves the queue,
	// after its payload has been copied out or discarded.
	OnRelease func(*encdec.Frame)

	mu     sync.Mutex
	frames []*encdec.Frame

	log     *slog.Logger
	metrics metrics.StreamMetrics
}

func New(name string) *Queue {
	return &Queue{
		Name:    name,
		log:     slog.With("module", name),
		metrics: metrics.NewStreamMetrics(name),
	}
}

// Push appends a frame to the tail of the queue
func (q *Queue) Push(f *encdec.Frame) {
	q.mu.Lock()
	q.frames = append(q.frames, f)
	q.mu.Unlock()

	q.metrics.FramesWritten.Inc()
}

// TryPop takes the oldest frame out of the queue, or returns false if
// there is none. It never waits for a frame to arrive.
func (q *Queue) TryPop() (*encdec.Frame, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.frames) == 0 {
		return nil, false
	}
	f := q.frames[0]
	q.frames[0] = nil
	q.frames = q.frames[1:]
	if len(q.frames) == 0 {
		q.frames = nil
	}
	return f, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// DrainInto pops every queued frame. Each frame carrying exactly
// expectedSize bytes is copied over dst, so dst ends up holding the most
// recent one. Frames of any other size are left over from an earlier
// configuration; they are logged and dropped. dst is not touched when
// nothing matching was queued. Only the newest copy counts as read; the
// superseded ones count as dropped. It returns the number of frames copied.
func (q *Queue) DrainInto(dst []byte, expectedSize int) int {
	copied := 0
	for {
		f, ok := q.TryPop()
		if !ok {
			break
		}

		if f.Size() != expectedSize || len(dst) < expectedSize {
			q.log.Warn("dropping frame with mismatched size",
				"size", f.Size(), "expected", expectedSize, "width", f.Width, "height", f.Height)
			q.metrics.FramesDropped.Inc()
		} else {
			copy(dst[:expectedSize], f.Data)
			copied++
		}
		q.release(f)
	}

	if copied > 0 {
		q.metrics.FramesRead.Inc()
	}
	if copied > 1 {
		q.log.Debug("skipped backlog", "frames", copied-1)
		q.metrics.FramesDropped.Add(float64(copied - 1))
	}
	return copied
}

// Clear drops everything still queued
func (q *Queue) Clear() int {
	q.mu.Lock()
	frames := q.frames
	q.frames = nil
	q.mu.Unlock()

	for _, f := range frames {
		q.release(f)
	}
	if len(frames) > 0 {
		q.metrics.FramesDropped.Add(float64(len(frames)))
	}
	return len(frames)
}

func (q *Queue) release(f *encdec.Frame) {
	if q.OnRelease != nil {
		q.OnRelease(f)
	}
}
