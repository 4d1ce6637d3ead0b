// cmd/autoscrapexter/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	apperrors "github.com/valpere/AutoScrapexter/internal/errors"
)

// Build information, set with -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(apperrors.ExitCode(err))
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "AutoScrapexter %s\n", version)
	fmt.Fprintf(w, "Build time: %s\n", buildTime)
	fmt.Fprintf(w, "Git commit: %s\n", gitCommit)
}
