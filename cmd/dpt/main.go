// Command dpt listens for Korean voice commands and turns them into
// calendar events.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/dpt/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run cancels the command on SIGINT, SIGTERM or SIGHUP. A second signal
// falls through to the default handler and kills the process.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	go func() {
		<-ctx.Done()
		stop()
	}()

	return app.Execute(ctx, args, stdout, stderr)
}
