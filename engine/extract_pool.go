package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/everkin/kin-go-sdk/emotion"
	"github.com/everkin/kin-go-sdk/memory"
)

// extractJob is one completed exchange queued for background memory
// extraction.
type extractJob struct {
	personaID  string
	userText   string
	replyText  string
	assessment emotion.Assessment
}

// extractPool runs memory extraction off the request path: a bounded
// queue feeding a fixed set of workers, with failures captured on a
// channel instead of surfacing to the conversational caller.
//
// Each job gets its own timeout-bounded context detached from the
// originating turn, so extraction never shares the turn's lifetime.
// Memory writes are all-or-nothing per record, so cancelling a worker
// mid-job cannot leave a partially written memory behind.
type extractPool struct {
	manager  *memory.Manager
	jobs     chan extractJob
	failures chan error
	timeout  time.Duration

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool

	dropped  atomic.Int64
	failed   atomic.Int64
	finished atomic.Int64
}

func newExtractPool(manager *memory.Manager, workers, queueSize int, timeout time.Duration) *extractPool {
	base, cancel := context.WithCancel(context.Background())
	p := &extractPool{
		manager:  manager,
		jobs:     make(chan extractJob, queueSize),
		failures: make(chan error, queueSize),
		timeout:  timeout,
		base:     base,
		cancel:   cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// submit enqueues a job without blocking. A full queue drops the job
// and records the drop as a failure: losing a memory is acceptable,
// stalling a reply is not.
func (p *extractPool) submit(job extractJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		p.dropped.Add(1)
		p.report(fmt.Errorf("extraction queue full, dropped exchange for persona %s", job.personaID))
		return false
	}
}

func (p *extractPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(p.base, p.timeout)
		err := p.manager.RecordExchange(ctx, job.personaID, job.userText, job.replyText, job.assessment)
		cancel()

		if err != nil {
			p.failed.Add(1)
			p.report(fmt.Errorf("extract exchange for persona %s: %w", job.personaID, err))
			continue
		}
		p.finished.Add(1)
	}
}

// report logs a failure and offers it to the failures channel. The
// channel is buffered; when nobody is draining it, the log line is the
// observability record and the oldest buffered error is sacrificed.
func (p *extractPool) report(err error) {
	log.Printf("[EXTRACT] %v", err)
	select {
	case p.failures <- err:
	default:
		select {
		case <-p.failures:
		default:
		}
		select {
		case p.failures <- err:
		default:
		}
	}
}

// close stops intake, cancels in-flight contexts after letting queued
// jobs start, and waits for workers to exit.
func (p *extractPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	close(p.failures)
}
