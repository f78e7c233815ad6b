//go:build windows

package util

import "os"

// ShutdownSignals returns the signals to listen for graceful shutdown.
func ShutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// GracefulSignal terminates the process. Windows cannot deliver SIGINT to a
// child process and capture processes hold no state worth flushing.
func GracefulSignal(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Kill()
}
