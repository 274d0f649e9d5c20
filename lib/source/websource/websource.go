// Package websource is a live video source showing a web page. Frames are
// painted by an off-screen browser and pulled by the pipeline at a fixed
// rate; when nothing new was painted the previous frame is repeated.
package websource

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fosdem/webrendersrc/lib/browser"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/framequeue"
	"github.com/fosdem/webrendersrc/lib/metrics"
)

const (
	DefaultURL          = "http://www.bbc.co.uk"
	DefaultWidth        = 1280
	DefaultHeight       = 720
	DefaultPumpInterval = 5 * time.Millisecond
)

var ErrRunning = errors.New("properties can only be changed while the source is stopped")

// HelperExitCode is returned by Start when the process turned out to be one
// of the browser engine's helper processes. The caller has to exit with it.
type HelperExitCode int

func (h HelperExitCode) Error() string {
	return fmt.Sprintf("running as browser helper process, exit status %d", int(h))
}

type Properties struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func DefaultProperties() Properties {
	return Properties{
		URL:    DefaultURL,
		Width:  DefaultWidth,
		Height: DefaultHeight,
	}
}

func (p *Properties) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("url must not be empty")
	}
	cfg := encdec.FrameCfg{Width: p.Width, Height: p.Height}
	return cfg.Validate()
}

func (p *Properties) FrameSize() int {
	return encdec.FrameSize(encdec.BGRAFrames, p.Width, p.Height)
}

// ControllerFactory makes a fresh browser controller for every session
type ControllerFactory func() (*browser.Controller, error)

type Options struct {
	Name          string
	Properties    Properties
	NewController ControllerFactory
	// Args are the process arguments, inspected for helper process roles
	Args          []string
	Allocator     encdec.FrameAllocator
	PumpInterval  time.Duration
}

type session struct {
	ctrl  *browser.Controller
	props Properties
	size  int

	done chan struct{}
	wg   sync.WaitGroup
}

type Source struct {
	Name string

	newController ControllerFactory
	args          []string
	alloc         encdec.FrameAllocator
	pumpInterval  time.Duration

	// serialises start, stop and property changes; held across browser calls
	lifeMu sync.Mutex

	// guards props, sess and listeners, never held across browser calls
	mu        sync.Mutex
	props     Properties
	sess      *session
	listeners []func(running bool)

	// read on the pull path without locking
	caps    atomic.Pointer[Caps]
	size    atomic.Int64
	nFrames atomic.Uint64
	painted atomic.Uint64

	queue   *framequeue.Queue
	metrics metrics.StreamMetrics
	log     *slog.Logger
}

func New(opts Options) *Source {
	if opts.Name == "" {
		opts.Name = "webrender"
	}
	if opts.PumpInterval <= 0 {
		opts.PumpInterval = DefaultPumpInterval
	}
	if opts.Allocator == nil {
		opts.Allocator = &encdec.DumbFrameAllocator{}
	}
	if opts.Properties == (Properties{}) {
		opts.Properties = DefaultProperties()
	}

	s := &Source{
		Name:          opts.Name,
		newController: opts.NewController,
		args:          opts.Args,
		alloc:         opts.Allocator,
		pumpInterval:  opts.PumpInterval,
		props:         opts.Properties,
		queue:         framequeue.New(opts.Name),
		metrics:       metrics.NewStreamMetrics(opts.Name),
		log:           slog.With("module", opts.Name),
	}
	if r, ok := opts.Allocator.(interface{ Release(*encdec.Frame) }); ok {
		s.queue.OnRelease = r.Release
	}
	s.storeCaps(s.props)
	return s
}

func (s *Source) storeCaps(p Properties) {
	caps := NewCaps(p.Width, p.Height)
	s.caps.Store(&caps)
	s.size.Store(int64(p.FrameSize()))
}

func (s *Source) Properties() Properties {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.props
}

// SetProperties replaces url, width and height. It waits for a start or
// stop in progress and fails with ErrRunning while a session is active.
func (s *Source) SetProperties(p Properties) error {
	err := p.Validate()
	if err != nil {
		return err
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		return ErrRunning
	}
	s.props = p
	s.storeCaps(p)
	return nil
}

func (s *Source) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess != nil
}

// OnStateChange registers f to be called after every start and stop
func (s *Source) OnStateChange(f func(running bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, f)
}

// Caps never blocks, not even while a session is starting or stopping
func (s *Source) Caps() Caps {
	return *s.caps.Load()
}

func (s *Source) Queue() *framequeue.Queue {
	return s.queue
}

// Start brings up a browser session showing the configured page. Starting
// an already started source does nothing.
func (s *Source) Start() error {
	started, err := s.start()
	if started {
		s.notify(true)
	}
	return err
}

func (s *Source) start() (bool, error) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	running := s.sess != nil
	props := s.props
	s.mu.Unlock()

	if running {
		s.log.Debug("already started")
		return false, nil
	}
	if s.newController == nil {
		return false, fmt.Errorf("no browser controller factory configured")
	}

	ctrl, err := s.newController()
	if err != nil {
		return false, fmt.Errorf("could not create browser controller: %w", err)
	}

	sess := &session{
		ctrl:  ctrl,
		props: props,
		size:  props.FrameSize(),
		done:  make(chan struct{}),
	}

	s.nFrames.Store(0)
	s.queue.Clear()

	code, err := ctrl.Init(s.args, s.frameSink(sess))
	if err != nil {
		return false, fmt.Errorf("could not initialise browser: %w", err)
	}
	if code >= 0 {
		return false, HelperExitCode(code)
	}

	err = ctrl.CreateFrame(sess.props.URL, sess.props.Width, sess.props.Height)
	if err != nil {
		ctrl.End()
		return false, err
	}

	sess.wg.Add(1)
	go s.pump(sess)

	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
	s.metrics.SessionActive.Set(1)
	s.log.Info("started", "url", sess.props.URL, "width", sess.props.Width, "height", sess.props.Height)
	return true, nil
}

// Stop marks the session inactive, waits for the message pump to return and
// only then ends the browser session. Stopping a stopped source does
// nothing.
func (s *Source) Stop() error {
	if s.stop() {
		s.notify(false)
	}
	return nil
}

func (s *Source) stop() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	sess := s.sess
	s.sess = nil
	s.mu.Unlock()
	if sess == nil {
		return false
	}

	close(sess.done)
	sess.wg.Wait()
	sess.ctrl.End()

	if n := s.queue.Clear(); n > 0 {
		s.log.Debug("discarded unread frames", "frames", n)
	}
	s.metrics.SessionActive.Set(0)
	s.log.Info("stopped")
	return true
}

func (s *Source) Close() error {
	return s.Stop()
}

func (s *Source) notify(running bool) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, f := range listeners {
		f(running)
	}
}

func (s *Source) pump(sess *session) {
	defer sess.wg.Done()

	timer := time.NewTimer(s.pumpInterval)
	defer timer.Stop()
	for {
		select {
		case <-sess.done:
			return
		case <-timer.C:
			sess.ctrl.Run()
			timer.Reset(s.pumpInterval)
		}
	}
}

// frameSink accepts paints of the session's configured size into the queue
func (s *Source) frameSink(sess *session) browser.FrameSink {
	info := &encdec.FrameInfo{
		FrameCfg: encdec.FrameCfg{
			Width:  sess.props.Width,
			Height: sess.props.Height,
		},
		FrameType: encdec.BGRAFrames,
	}
	return func(p *browser.Paint) {
		if len(p.Data) != sess.size {
			s.log.Warn("dropping paint with mismatched size",
				"width", p.Width, "height", p.Height, "bytes", len(p.Data), "expected", sess.size)
			s.metrics.FramesDropped.Inc()
			return
		}

		f := s.alloc.NewFrame(info)
		if f == nil {
			s.log.Warn("could not allocate frame, dropping paint")
			s.metrics.FramesDropped.Inc()
			return
		}
		copy(f.Data, p.Data)
		f.ID = s.painted.Add(1)
		s.queue.Push(f)
	}
}

// Fill produces the next output buffer. It never blocks: if no frame was
// painted since the last call, buf keeps its previous contents.
func (s *Source) Fill(buf *encdec.Buffer) error {
	n := s.nFrames.Add(1)
	buf.Offset = n - 1
	buf.OffsetEnd = n

	s.metrics.FramesRequested.Inc()
	if s.queue.DrainInto(buf.Data, int(s.size.Load())) == 0 {
		s.metrics.FramesDuplicated.Inc()
	}
	return nil
}
