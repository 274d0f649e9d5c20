package ffmpegsink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

// FFmpegSink feeds raw frames to the stdin of a shell command, restarting
// it whenever it exits.
type FFmpegSink struct {
	name     string
	template string
	shellCmd string

	mu      sync.Mutex
	cond    *sync.Cond
	pending []byte
	spare   []byte
	closed  bool
	dropped uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup

	log *slog.Logger
}

func New(name string, cfg *config.FFmpegSinkCfg) *FFmpegSink {
	f := &FFmpegSink{
		name:     name,
		template: cfg.Cmd,
		log:      slog.With("module", name),
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *FFmpegSink) Name() string {
	return f.name
}

func ExpandCmd(template string, caps websource.Caps) string {
	r := strings.NewReplacer(
		"{width}", strconv.Itoa(caps.Width),
		"{height}", strconv.Itoa(caps.Height),
		"{framerate}", fmt.Sprintf("%d/%d", caps.FramerateNum, caps.FramerateDen),
		"{pix_fmt}", strings.ToLower(caps.Format),
	)
	return r.Replace(template)
}

func (f *FFmpegSink) Start(caps websource.Caps) error {
	f.shellCmd = ExpandCmd(f.template, caps)

	f.mu.Lock()
	f.closed = false
	f.pending = nil
	f.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	f.wg.Add(1)
	go f.runFFmpeg(ctx)
	return nil
}

func (f *FFmpegSink) setupCmd(ctx context.Context) (*exec.Cmd, io.WriteCloser, error) {
	cmd := exec.CommandContext(ctx, "bash", "-c", f.shellCmd)
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("could not get ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("could not get ffmpeg stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("could not get ffmpeg stderr: %w", err)
	}
	go f.processOutput(stdout, slog.LevelInfo)
	go f.processOutput(stderr, slog.LevelDebug)
	return cmd, stdin, nil
}

func (f *FFmpegSink) runFFmpeg(ctx context.Context) {
	defer f.wg.Done()
	for {
		f.log.Debug("starting ffmpeg", "cmd", f.shellCmd)

		cmd, stdin, err := f.setupCmd(ctx)
		if err == nil {
			err = cmd.Start()
		}
		if err != nil {
			f.log.Error("could not start ffmpeg", "error", err)
			if !sleep(ctx, 5*time.Second) {
				return
			}
			continue
		}

		f.processStdin(stdin)
		err = cmd.Wait()
		if ctx.Err() != nil {
			return
		}
		f.log.Error("ffmpeg died", "error", err)
		if !sleep(ctx, 1*time.Second) {
			return
		}
	}
}

func (f *FFmpegSink) processOutput(r io.Reader, level slog.Level) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		f.log.Log(context.Background(), level, "[ffmpeg] "+scanner.Text())
	}
}

// processStdin writes the latest pending frame until the pipe breaks or the
// sink is closed.
func (f *FFmpegSink) processStdin(stdin io.WriteCloser) {
	defer stdin.Close()
	for {
		f.mu.Lock()
		for f.pending == nil && !f.closed {
			f.cond.Wait()
		}
		if f.closed {
			f.mu.Unlock()
			return
		}
		data := f.pending
		f.pending = nil
		f.mu.Unlock()

		_, err := stdin.Write(data)
		f.recycle(data)
		if err != nil {
			f.log.Error("could not write to ffmpeg stdin", "error", err)
			return
		}
	}
}

// Consume hands a copy of buf to the writer. If ffmpeg has not taken the
// previous frame yet, that one is replaced.
func (f *FFmpegSink) Consume(buf *encdec.Buffer) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := f.spare
	f.spare = nil
	if len(data) != len(buf.Data) {
		data = make([]byte, len(buf.Data))
	}
	copy(data, buf.Data)

	if f.pending != nil {
		f.dropped++
		f.spare = f.pending
	}
	f.pending = data
	f.cond.Signal()
	return nil
}

func (f *FFmpegSink) recycle(data []byte) {
	f.mu.Lock()
	if f.spare == nil {
		f.spare = data
	}
	f.mu.Unlock()
}

// Dropped counts frames replaced before ffmpeg read them
func (f *FFmpegSink) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *FFmpegSink) Close() error {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()

	if f.cancel != nil {
		f.cancel()
	}
	f.wg.Wait()
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
