package engine

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/Zopolis4/ecasound/command"
)

// WatchSignals implements the signal-watchdog thread: SIGINT/SIGTERM
// push command.Exit onto the queue rather than touching engine state
// directly, so the shutdown still happens on the engine thread at the
// next iteration boundary. It runs until stop is closed.
func WatchSignals(queue *command.Queue, stop <-chan struct{}) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	for {
		select {
		case <-sigs:
			queue.Push(command.Command{Opcode: command.Exit})
		case <-stop:
			return
		}
	}
}
