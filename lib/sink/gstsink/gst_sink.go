//go:build gst

package gstsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

const Enabled = true

var errFailed = errors.New("gstreamer pipeline stopped")

// GstSink pushes frames into an appsrc at the head of a GStreamer pipeline
type GstSink struct {
	name   string
	launch string

	pipeline *gst.Pipeline
	src      *app.Source
	failed   atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *slog.Logger
}

func New(name string, cfg *config.GstSinkCfg) (*GstSink, error) {
	gst.Init(nil)
	return &GstSink{
		name:   name,
		launch: cfg.Launch,
		log:    slog.With("module", name),
	}, nil
}

func (g *GstSink) Name() string {
	return g.name
}

func (g *GstSink) Start(caps websource.Caps) error {
	desc := LaunchString(g.launch, caps.String())
	g.log.Debug("creating pipeline", "launch", desc)

	pipeline, err := gst.NewPipelineFromString(desc)
	if err != nil {
		return fmt.Errorf("could not create pipeline: %w", err)
	}
	elem, err := pipeline.GetElementByName(AppSrcName)
	if err != nil {
		return fmt.Errorf("pipeline has no appsrc: %w", err)
	}
	g.src = app.SrcFromElement(elem)
	g.src.SetCaps(gst.NewCapsFromString(caps.String()))

	err = pipeline.SetState(gst.StatePlaying)
	if err != nil {
		return fmt.Errorf("could not start pipeline: %w", err)
	}
	g.pipeline = pipeline
	g.failed.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.wg.Add(1)
	go g.watchBus(ctx)
	return nil
}

func (g *GstSink) watchBus(ctx context.Context) {
	defer g.wg.Done()
	bus := g.pipeline.GetPipelineBus()

	for ctx.Err() == nil {
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			g.log.Info("end of stream")
			g.failed.Store(true)
			return
		case gst.MessageError:
			gerr := msg.ParseError()
			g.log.Error("pipeline error", "error", gerr.Error(), "debug", gerr.DebugString())
			g.failed.Store(true)
			return
		case gst.MessageStateChanged:
			if msg.Source() == g.pipeline.GetName() {
				from, to := msg.ParseStateChanged()
				g.log.Debug("pipeline state changed", "from", from, "to", to)
			}
		}
	}
}

func (g *GstSink) Consume(buf *encdec.Buffer) error {
	if g.failed.Load() {
		return errFailed
	}

	b := gst.NewBufferFromBytes(buf.Data)
	b.SetOffset(int64(buf.Offset))
	b.SetOffsetEnd(int64(buf.OffsetEnd))
	b.SetDuration(buf.Duration)

	ret := g.src.PushBuffer(b)
	if ret != gst.FlowOK {
		return fmt.Errorf("appsrc refused buffer: %s", ret)
	}
	return nil
}

func (g *GstSink) Close() error {
	if g.cancel != nil {
		g.cancel()
		g.wg.Wait()
		g.cancel = nil
	}
	if g.pipeline == nil {
		return nil
	}
	g.src.EndStream()
	err := g.pipeline.SetState(gst.StateNull)
	g.pipeline = nil
	return err
}
