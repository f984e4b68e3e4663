// Command encodingmodel fits the per-vertex task encoding model and
// verifies its outputs against reference arrays.
//
// Usage:
//
//	encodingmodel fit -config fit.yaml [-output-root DIR] [-workers N] ...
//	encodingmodel verify -reference DIR [-local DIR] [-manifest checks.yaml]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
