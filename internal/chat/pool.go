package chat

import (
	"log"
	"sync"
)

// WorkerPool runs I/O-bound tasks on a fixed set of workers so request
// handlers never block starting goroutines under a constrained runtime.
// Submission is non-blocking: when the queue is full the caller runs the
// task in-line instead.
type WorkerPool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	logger *log.Logger

	closeOnce sync.Once
}

// NewWorkerPool starts workers goroutines with a queue of queueDepth.
// Non-positive values are clamped to 4 workers and a queue of 64.
func NewWorkerPool(workers, queueDepth int) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	p := &WorkerPool{
		tasks:  make(chan func(), queueDepth),
		logger: log.New(log.Writer(), "[POOL] ", log.LstdFlags),
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// TrySubmit enqueues a task without blocking. It returns false when the
// queue is full or the pool is shut down; the caller is expected to run the
// task in-line in that case. Pool unavailability is detected structurally by
// this boolean, not by inspecting runtime error strings.
func (p *WorkerPool) TrySubmit(task func()) (submitted bool) {
	defer func() {
		if recover() != nil {
			// send on closed channel during shutdown
			submitted = false
		}
	}()
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting tasks and waits for in-flight work to drain.
func (p *WorkerPool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.tasks)
	})
	p.wg.Wait()
}
