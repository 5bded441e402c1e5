package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/huntlab/filehound/pkg/config"
	"github.com/huntlab/filehound/pkg/coord"
	"github.com/huntlab/filehound/pkg/rules"
	"github.com/huntlab/filehound/pkg/store"
)

// Exit codes: 0 clean, 2 misuse or bad configuration, 3 unrecoverable
// database error, 4 all drivers failed to start, 130 cancellation signal.
const (
	exitOK        = 0
	exitError     = 1
	exitMisuse    = 2
	exitDatabase  = 3
	exitDrivers   = 4
	exitCancelled = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := Execute(ctx)
	if err == nil {
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	switch {
	case errors.Is(err, context.Canceled):
		os.Exit(exitCancelled)
	case store.IsFatal(err):
		os.Exit(exitDatabase)
	case errors.Is(err, coord.ErrAllDriversFailed):
		os.Exit(exitDrivers)
	case errors.Is(err, rules.ErrMalformedRule), errors.Is(err, config.ErrBadThreshold):
		os.Exit(exitMisuse)
	case errors.Is(err, errUsage):
		os.Exit(exitMisuse)
	default:
		os.Exit(exitError)
	}
}
