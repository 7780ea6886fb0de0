package signalhandler

import (
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

// SetupHandler installs a SIGINT/SIGTERM handler so an interrupted batch
// exits cleanly. Previously cached fingerprints remain valid and are reused
// on the next invocation.
func SetupHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			os.Exit(0)
		}
	}()
}

// GetOptimalProcs returns the number of hashing workers to run. Decode+hash
// is CPU-bound, so one worker per available core.
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()
	if numCPU < 1 {
		return 1
	}
	return numCPU
}
