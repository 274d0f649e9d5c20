// Package pipeline is the pull loop that asks the source for a frame at the
// caps frame rate and fans each filled buffer out to the sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/source/websource"
	"github.com/fosdem/webrendersrc/lib/stats"
	"github.com/fosdem/webrendersrc/lib/utils"
)

// ErrShutdown is returned by a sink that wants the whole program to stop
var ErrShutdown = errors.New("shutdown requested")

type Source interface {
	Fill(buf *encdec.Buffer) error
	Caps() websource.Caps
}

// Sink consumes filled buffers. Consume is called on the pipeline goroutine
// and must not hold on to buf after returning.
type Sink interface {
	Name() string
	Start(caps websource.Caps) error
	Consume(buf *encdec.Buffer) error
	Close() error
}

type Pipeline struct {
	src   Source
	sinks []Sink
	stats *stats.Stats

	// sinks whose Start succeeded and that have not been closed since
	started []Sink

	mu       sync.Mutex
	last     []byte
	lastCaps websource.Caps

	log *slog.Logger
}

func New(src Source, st *stats.Stats, sinks ...Sink) *Pipeline {
	if st == nil {
		st = stats.New()
	}
	return &Pipeline{
		src:   src,
		sinks: sinks,
		stats: st,
		log:   slog.With("module", "pipeline"),
	}
}

func (p *Pipeline) Stats() *stats.Stats {
	return p.stats
}

// Run pulls frames until ctx is cancelled or a sink returns ErrShutdown.
// The returned error is only non-nil if sinks could not be started.
func (p *Pipeline) Run(ctx context.Context) error {
	caps := p.src.Caps()
	err := p.startSinks(caps)
	if err != nil {
		return err
	}
	defer p.closeSinks()

	buf := encdec.NewBuffer(caps.FrameSize())
	ticker := time.NewTicker(caps.FrameDuration())
	defer ticker.Stop()

	var dt utils.DeltaTimer
	start := time.Now()
	p.log.Info("pipeline running", "caps", caps.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if c := p.src.Caps(); c != caps {
			p.log.Info("caps changed, restarting sinks", "caps", c.String())
			p.closeSinks()
			caps = c
			buf = encdec.NewBuffer(caps.FrameSize())
			ticker.Reset(caps.FrameDuration())
			err = p.startSinks(caps)
			if err != nil {
				return err
			}
		}

		err = p.src.Fill(buf)
		if err != nil {
			p.log.Error("source failed to fill buffer", "error", err)
			continue
		}
		buf.PTS = time.Since(start)
		buf.Duration = caps.FrameDuration()

		p.keep(buf, caps)
		p.stats.Update(dt.Next())

		for _, s := range p.sinks {
			err := s.Consume(buf)
			if errors.Is(err, ErrShutdown) {
				p.log.Info("sink requested shutdown", "sink", s.Name())
				return nil
			}
			if err != nil {
				p.log.Warn("sink failed to consume frame", "sink", s.Name(), "error", err)
			}
		}
	}
}

func (p *Pipeline) startSinks(caps websource.Caps) error {
	for _, s := range p.sinks {
		err := s.Start(caps)
		if err != nil {
			p.closeSinks()
			return fmt.Errorf("could not start sink %s: %w", s.Name(), err)
		}
		p.started = append(p.started, s)
	}
	return nil
}

// closeSinks closes every started sink exactly once
func (p *Pipeline) closeSinks() {
	for _, s := range p.started {
		err := s.Close()
		if err != nil {
			p.log.Warn("could not close sink", "sink", s.Name(), "error", err)
		}
	}
	p.started = nil
}

func (p *Pipeline) keep(buf *encdec.Buffer, caps websource.Caps) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.last) != len(buf.Data) {
		p.last = make([]byte, len(buf.Data))
	}
	copy(p.last, buf.Data)
	p.lastCaps = caps
}

// LastFrame returns a copy of the most recently filled buffer
func (p *Pipeline) LastFrame() ([]byte, websource.Caps, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil, websource.Caps{}, false
	}
	return append([]byte(nil), p.last...), p.lastCaps, true
}
