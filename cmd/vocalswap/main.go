// Command vocalswap replaces character vocals of a game with clips from mod
// directories, per equipped skin.
//
// Usage:
//
//	vocalswap serve --config config.yaml
//	vocalswap slots
//	vocalswap example-config --out Example.00000.hastevocalsfx.json
//	vocalswap scan ./mods/hero ./mods/villain
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vocalswap: %v\n", err)
		return 1
	}
	return 0
}
