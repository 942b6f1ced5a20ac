// Command jollykit runs chunked batch jobs.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jollyblade/jollykit/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker.

func main() {
	os.Exit(extractExitCode(run()))
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// extractExitCode maps err to a process exit code: 0 for nil, the code carried by a
// RunFailedError, and 1 otherwise.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}
	var runErr *cli.RunFailedError
	if errors.As(err, &runErr) {
		return runErr.ExitCode
	}
	return 1
}
