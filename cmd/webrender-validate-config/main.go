package main

import (
	"fmt"
	"os"

	"github.com/fosdem/webrendersrc/lib/config"

	// their disabled variants switch off the feature flags
	_ "github.com/fosdem/webrendersrc/lib/browser/plutoengine"
	_ "github.com/fosdem/webrendersrc/lib/sink/gstsink"
	_ "github.com/fosdem/webrendersrc/lib/sink/omtsink"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <config file>\n", os.Args[0])
		os.Exit(2)
	}

	fmt.Printf("This build supports: plutobook engine: %s, gstreamer sink: %s, omt sink: %s\n\n",
		yesNo(config.EnablePlutobook), yesNo(config.EnableGst), yesNo(config.EnableOmt))

	cfg, err := config.Parse(os.Args[1])
	if err != nil {
		fmt.Printf("Config invalid: %s\n", err)
		os.Exit(1)
	}

	fmt.Print("Config valid!\n\n")
	fmt.Print(cfg)
}
