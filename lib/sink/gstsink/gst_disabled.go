//go:build !gst

package gstsink

import (
	"errors"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

const Enabled = false

func init() {
	config.EnableGst = false
}

type GstSink struct{}

func New(name string, cfg *config.GstSinkCfg) (*GstSink, error) {
	return nil, errors.New("webrendersrc was built without GStreamer support")
}

func (g *GstSink) Name() string                     { return "" }
func (g *GstSink) Start(caps websource.Caps) error  { return nil }
func (g *GstSink) Consume(buf *encdec.Buffer) error { return nil }
func (g *GstSink) Close() error                     { return nil }
