//go:build omt

package omtsink

import (
	"log/slog"
	"time"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/sink/omtsink/libomt"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

const Enabled = true

type OmtSink struct {
	name    string
	cfg     config.OmtSinkCfg
	quality libomt.Quality

	send  *libomt.Sender
	frame *libomt.VideoFrame

	statsTimer time.Time
	log        *slog.Logger
}

func New(name string, cfg *config.OmtSinkCfg) (*OmtSink, error) {
	f := &OmtSink{
		name:    name,
		cfg:     *cfg,
		quality: libomt.QualityDefault,
		log:     slog.With("module", name),
	}
	if f.cfg.Name == "" {
		f.cfg.Name = name
	}

	switch cfg.Quality {
	case "low":
		f.quality = libomt.QualityLow
	case "medium":
		f.quality = libomt.QualityMedium
	case "high":
		f.quality = libomt.QualityHigh
	}
	return f, nil
}

func (f *OmtSink) Name() string {
	return f.name
}

func (f *OmtSink) Start(caps websource.Caps) error {
	if f.send == nil {
		send, err := libomt.NewSender(f.cfg.Name, f.quality)
		if err != nil {
			return err
		}
		f.send = send
		f.log.Info("starting OMT sender", "address", f.send.Address())
	}

	f.frame = &libomt.VideoFrame{
		Width:       caps.Width,
		Height:      caps.Height,
		Codec:       libomt.CodecBGRA,
		ColorSpace:  libomt.ColorSpaceBT709,
		Stride:      caps.Width * 4,
		FrameRateN:  caps.FramerateNum,
		FrameRateD:  caps.FramerateDen,
		AspectRatio: float32(caps.Width*caps.ParNum) / float32(caps.Height*caps.ParDen),
	}
	f.statsTimer = time.Now()
	return nil
}

func (f *OmtSink) Consume(buf *encdec.Buffer) error {
	f.frame.Timestamp = int64(buf.PTS / 100)
	f.send.Send(f.frame, buf.Data)

	if time.Since(f.statsTimer) > time.Second {
		f.statsTimer = time.Now()
		stats := f.send.VideoStatistics()
		f.log.Debug("sending",
			"connections", f.send.Connections(),
			"mb_per_s", float64(stats.BytesSentSinceLast)/1024.0/1024.0)
	}
	return nil
}

func (f *OmtSink) Close() error {
	if f.send != nil {
		f.send.Close()
		f.send = nil
	}
	return nil
}
