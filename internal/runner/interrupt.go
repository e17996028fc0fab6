package runner

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/llm-inferno/config-explorer/internal/logger"
)

// hardInterruptCount is the number of signals that abandons the in-flight
// measurement instead of letting it finish
const hardInterruptCount = 3

// interruptHandler implements the two-tier interrupt protocol. The first
// signal requests a soft stop: the in-flight measurement finishes, then the
// search saves and exits. Rapidly repeated signals abort the in-flight call
// too; whatever is already in memory is still best-effort saved.
type interruptHandler struct {
	soft    atomic.Bool
	signals atomic.Int32
	cancel  context.CancelFunc
	ch      chan os.Signal
	done    chan struct{}
}

func newInterruptHandler(cancel context.CancelFunc) *interruptHandler {
	h := &interruptHandler{
		cancel: cancel,
		ch:     make(chan os.Signal, hardInterruptCount),
		done:   make(chan struct{}),
	}
	signal.Notify(h.ch, os.Interrupt, syscall.SIGTERM)
	go h.loop()
	return h
}

func (h *interruptHandler) loop() {
	for {
		select {
		case <-h.ch:
			count := h.signals.Add(1)
			switch {
			case count == 1:
				h.soft.Store(true)
				logger.Get().Warnw("interrupt received, finishing in-flight measurement before saving",
					"repeat", hardInterruptCount-1, "hint", "repeat the interrupt to abort immediately")
			case count >= hardInterruptCount:
				logger.Get().Warnw("repeated interrupt, abandoning in-flight measurement")
				h.cancel()
			}
		case <-h.done:
			return
		}
	}
}

// Stopped reports whether a soft interrupt was requested; search drivers
// check this between oracle calls.
func (h *interruptHandler) Stopped() bool {
	return h.soft.Load()
}

func (h *interruptHandler) Close() {
	signal.Stop(h.ch)
	close(h.done)
}
