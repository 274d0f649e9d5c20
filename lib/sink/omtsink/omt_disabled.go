//go:build !omt

package omtsink

import (
	"errors"

	"github.com/fosdem/webrendersrc/lib/config"
	"github.com/fosdem/webrendersrc/lib/encdec"
	"github.com/fosdem/webrendersrc/lib/source/websource"
)

const Enabled = false

func init() {
	config.EnableOmt = false
}

type OmtSink struct{}

func New(name string, cfg *config.OmtSinkCfg) (*OmtSink, error) {
	return nil, errors.New("webrendersrc was built without OMT support")
}

func (f *OmtSink) Name() string                     { return "" }
func (f *OmtSink) Start(caps websource.Caps) error  { return nil }
func (f *OmtSink) Consume(buf *encdec.Buffer) error { return nil }
func (f *OmtSink) Close() error                     { return nil }
