// cmd/asli/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/asli/cmd"
	"github.com/xkilldash9x/asli/internal/observability"
	"github.com/xkilldash9x/asli/pkg/asli"
)

const panicLogFile = "panic.log"

// shutdownTimeout bounds closing the drivers still registered at exit.
const shutdownTimeout = 10 * time.Second

// Replaced in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	shutdown()
	observability.Sync()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		osExit(1)
	}
}

// shutdown closes every session a command left open. Without it a crashed or
// interrupted command may leave a browser process behind.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := asli.Shutdown(ctx); err != nil {
		observability.GetLogger().Warn("Failed to close browser sessions.", zap.Error(err))
	}
}

// handlePanic records the panic to panicLogFile and still releases the drivers.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	shutdown()
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "asli crashed. Details logged to %s\n", panicLogFile)
	osExit(2)
}
