package runner

import (
	"context"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("interrupt handler", func() {
	var (
		h         *interruptHandler
		cancelled chan struct{}
	)

	BeforeEach(func() {
		cancelled = make(chan struct{})
		h = newInterruptHandler(func() { close(cancelled) })
	})

	AfterEach(func() {
		h.Close()
	})

	It("starts without a stop request", func() {
		Expect(h.Stopped()).To(BeFalse())
	})

	It("requests a soft stop on the first signal", func() {
		h.ch <- syscall.SIGTERM
		Eventually(h.Stopped, time.Second).Should(BeTrue())
		Consistently(cancelled, 50*time.Millisecond).ShouldNot(BeClosed())
	})

	It("aborts the in-flight measurement on repeated signals", func() {
		for range hardInterruptCount {
			h.ch <- syscall.SIGTERM
		}
		Eventually(cancelled, time.Second).Should(BeClosed())
		Expect(h.Stopped()).To(BeTrue())
	})
})

var _ = Describe("interrupt handler wiring", func() {
	It("cancels the run context on a hard interrupt", func() {
		ctx, cancel := context.WithCancel(context.Background())
		h := newInterruptHandler(cancel)
		defer h.Close()

		for range hardInterruptCount {
			h.ch <- syscall.SIGTERM
		}
		Eventually(ctx.Done(), time.Second).Should(BeClosed())
	})
})
