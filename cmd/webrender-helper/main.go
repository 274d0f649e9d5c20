// webrender-helper is launched by the browser for its sub-processes in
// place of webrendersrc itself. It hands over to the real browser binary.
package main

import (
	"log/slog"
	"os"

	"github.com/fosdem/webrendersrc/lib/browser/cdpengine"
	wlog "github.com/fosdem/webrendersrc/lib/log"
)

func main() {
	wlog.Setup(slog.LevelWarn)
	os.Exit(cdpengine.New(cdpengine.Options{}).ExecHelper(os.Args))
}
