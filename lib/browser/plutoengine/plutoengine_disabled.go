//go:build !plutobook

package plutoengine

import (
	"errors"
	"time"

	"github.com/fosdem/webrendersrc/lib/browser"
	"github.com/fosdem/webrendersrc/lib/config"
)

const Enabled = false

func init() {
	config.EnablePlutobook = false
}

type Options struct {
	UserStyle string
	Refresh   time.Duration
}

func New(opts Options) (browser.Engine, error) {
	return nil, errors.New("webrendersrc was built without plutobook support")
}
