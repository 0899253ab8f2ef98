package report_test

import (
	"context"
	"time"

	"github.com/frahmantamala/redteam-collab/internal/report"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Render pool", func() {
	It("passes documents through to the renderer", func() {
		stub := &stubRenderer{pdf: []byte("%PDF-1.4")}
		pool := report.NewPool(stub, 2, 4, testLogger)
		DeferCleanup(pool.Shutdown)

		pdf, err := pool.RenderPDF(context.Background(), []byte("<html></html>"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(pdf)).To(Equal("%PDF-1.4"))
		Expect(stub.Calls()).To(Equal(1))
	})

	It("rejects work when the worker and queue are busy", func() {
		stub := &stubRenderer{pdf: []byte("ok"), gate: make(chan struct{})}
		pool := report.NewPool(stub, 1, 1, testLogger)
		DeferCleanup(pool.Shutdown)

		done := make(chan error, 1)
		go func() {
			_, err := pool.RenderPDF(context.Background(), nil)
			done <- err
		}()
		Eventually(stub.Calls).Should(Equal(1))

		// Abandoned submissions stay queued until the pool saturates.
		Eventually(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err := pool.RenderPDF(ctx, nil)
			return err
		}).Should(MatchError(report.ErrQueueFull))

		close(stub.gate)
		Eventually(done).Should(Receive(BeNil()))
	})

	It("returns when the caller gives up", func() {
		stub := &stubRenderer{gate: make(chan struct{})}
		pool := report.NewPool(stub, 1, 1, testLogger)
		DeferCleanup(pool.Shutdown)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := pool.RenderPDF(ctx, nil)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("refuses work after shutdown", func() {
		pool := report.NewPool(&stubRenderer{}, 1, 1, testLogger)
		pool.Shutdown()

		_, err := pool.RenderPDF(context.Background(), nil)
		Expect(err).To(MatchError(report.ErrPoolClosed))
	})
})
