package report

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned when every render slot and queue entry is taken.
var ErrQueueFull = errors.New("report: render queue full")

// ErrPoolClosed is returned after Shutdown.
var ErrPoolClosed = errors.New("report: render pool closed")

type renderResult struct {
	pdf []byte
	err error
}

type renderJob struct {
	ctx    context.Context
	html   []byte
	result chan renderResult
}

type renderWorker struct {
	id         int
	workerPool chan chan renderJob
	jobChannel chan renderJob
	logger     *slog.Logger
}

func (w *renderWorker) start(ctx context.Context, wg *sync.WaitGroup, render Renderer) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case w.workerPool <- w.jobChannel:
			case <-ctx.Done():
				return
			}

			select {
			case job := <-w.jobChannel:
				if err := job.ctx.Err(); err != nil {
					job.result <- renderResult{err: err}
					continue
				}
				w.logger.Debug("render worker processing job", "worker_id", w.id)
				pdf, err := render.RenderPDF(job.ctx, job.html)
				job.result <- renderResult{pdf: pdf, err: err}
			case <-ctx.Done():
				w.logger.Debug("render worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

// Pool bounds how many browsers render at once. It is itself a Renderer.
type Pool struct {
	renderer   Renderer
	logger     *slog.Logger
	jobQueue   chan renderJob
	workerPool chan chan renderJob
	maxWorkers int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func NewPool(renderer Renderer, maxWorkers, queueSize int, logger *slog.Logger) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		renderer:   renderer,
		logger:     logger,
		jobQueue:   make(chan renderJob, queueSize),
		workerPool: make(chan chan renderJob, maxWorkers),
		maxWorkers: maxWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.maxWorkers; i++ {
			w := &renderWorker{
				id:         i,
				workerPool: p.workerPool,
				jobChannel: make(chan renderJob),
				logger:     p.logger,
			}
			w.start(p.ctx, &p.wg, p.renderer)
		}

		p.wg.Add(1)
		go p.dispatch()

		p.logger.Info("report render pool started", "max_workers", p.maxWorkers, "queue_size", cap(p.jobQueue))
	})
}

func (p *Pool) dispatch() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobQueue:
			select {
			case jobChannel := <-p.workerPool:
				select {
				case jobChannel <- job:
				case <-p.ctx.Done():
					job.result <- renderResult{err: ErrPoolClosed}
					return
				}
			case <-p.ctx.Done():
				job.result <- renderResult{err: ErrPoolClosed}
				return
			}
		case <-p.ctx.Done():
			return
		}
	}
}

// RenderPDF queues the document and waits for a worker. It never blocks on a
// full queue.
func (p *Pool) RenderPDF(ctx context.Context, html []byte) ([]byte, error) {
	if p.ctx.Err() != nil {
		return nil, ErrPoolClosed
	}
	job := renderJob{ctx: ctx, html: html, result: make(chan renderResult, 1)}

	select {
	case p.jobQueue <- job:
	default:
		p.logger.Warn("report render queue full", "queue_capacity", cap(p.jobQueue))
		return nil, ErrQueueFull
	}

	select {
	case res := <-job.result:
		return res.pdf, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.ctx.Done():
		return nil, ErrPoolClosed
	}
}

// Shutdown stops the workers and waits for in-flight renders to return.
func (p *Pool) Shutdown() {
	p.logger.Info("shutting down report render pool")
	p.cancel()
	p.wg.Wait()
}
