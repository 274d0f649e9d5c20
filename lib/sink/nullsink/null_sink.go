package nullsink

import (
	"log/slog"
	"sync/atomic"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/pipeline"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

// NullSink throws frames away, counting them
type NullSink struct {
	name string
	cfg  config.NullSinkCfg

	frames atomic.Uint64
	last   atomic.Uint64
	caps   websource.Caps

	log *slog.Logger
}

func New(name string, cfg *config.NullSinkCfg) *NullSink {
	return &NullSink{
		name: name,
		cfg:  *cfg,
		log:  slog.With("module", name),
	}
}

func (n *NullSink) Name() string {
	return n.name
}

func (n *NullSink) Start(caps websource.Caps) error {
	n.caps = caps
	n.log.Debug("started", "caps", caps.String())
	return nil
}

func (n *NullSink) Consume(buf *encdec.Buffer) error {
	count := n.frames.Add(1)
	n.last.Store(buf.Offset)
	if n.cfg.StopAfter > 0 && count >= n.cfg.StopAfter {
		return pipeline.ErrShutdown
	}
	return nil
}

func (n *NullSink) Close() error {
	return nil
}

func (n *NullSink) Frames() uint64 {
	return n.frames.Load()
}

// LastOffset is the sequence number of the latest consumed buffer
func (n *NullSink) LastOffset() uint64 {
	return n.last.Load()
}
