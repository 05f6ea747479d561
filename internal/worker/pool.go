package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/timmy/vidnotes/internal/logger"
)

// ErrPoolFull is returned when every worker is busy and the queue is full.
var ErrPoolFull = errors.New("worker pool is full")

// ErrPoolClosed is returned after Stop.
var ErrPoolClosed = errors.New("worker pool is stopped")

// ErrTicketUsed is returned when a ticket is submitted twice or after Release.
var ErrTicketUsed = errors.New("ticket already used")

// Task is one unit of background work. Tasks are not cancelled once started.
type Task func(ctx context.Context)

// Config sizes a Pool.
type Config struct {
	Workers   int
	QueueSize int
}

// Pool runs tasks on a fixed number of goroutines fed by a bounded queue.
// Admission is two-phase: Reserve claims capacity, Ticket.Submit enqueues.
// Callers that must not create state for rejected work reserve first.
type Pool struct {
	tasks   chan Task
	workers int
	limit   int

	mu       sync.Mutex
	inflight int
	closed   bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a pool. Zero values fall back to 2 workers and a queue of 16.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	} else if cfg.QueueSize == 0 {
		cfg.QueueSize = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		tasks:   make(chan Task, cfg.QueueSize+cfg.Workers),
		workers: cfg.Workers,
		limit:   cfg.Workers + cfg.QueueSize,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	logger.CtxInfo(p.ctx, "Starting worker pool: workers=%d, capacity=%d", p.workers, p.limit)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops accepting work, lets queued tasks drain and waits for workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	logger.CtxInfo(p.ctx, "Worker pool stopped")
}

// Ticket is a reserved slot. Exactly one of Submit or Release must be called.
type Ticket struct {
	pool *Pool
	once sync.Once
}

// Reserve claims a slot or fails with ErrPoolFull.
func (p *Pool) Reserve() (*Ticket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if p.inflight >= p.limit {
		return nil, ErrPoolFull
	}
	p.inflight++
	return &Ticket{pool: p}, nil
}

// Submit enqueues task on the reserved slot. The slot is freed when the task
// returns. The channel has room for every reservation, so Submit never blocks.
func (t *Ticket) Submit(task Task) error {
	err := ErrTicketUsed
	t.once.Do(func() {
		p := t.pool
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			p.inflight--
			err = ErrPoolClosed
			return
		}
		p.tasks <- task
		err = nil
	})
	return err
}

// Release gives the slot back without running anything.
func (t *Ticket) Release() {
	t.once.Do(func() {
		t.pool.done()
	})
}

// Submit reserves and enqueues in one step.
func (p *Pool) Submit(task Task) error {
	ticket, err := p.Reserve()
	if err != nil {
		return err
	}
	return ticket.Submit(task)
}

// InFlight returns the number of reserved, queued or running tasks.
func (p *Pool) InFlight() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inflight
}

// Capacity returns workers plus queue size.
func (p *Pool) Capacity() int {
	return p.limit
}

func (p *Pool) done() {
	p.mu.Lock()
	p.inflight--
	p.mu.Unlock()
}

func (p *Pool) worker(workerID int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(workerID, task)
	}
}

func (p *Pool) run(workerID int, task Task) {
	defer p.done()
	defer func() {
		if r := recover(); r != nil {
			logger.With(logger.Fields{"worker_id": workerID}).Error(p.ctx, "Task panicked: %v", r)
		}
	}()
	task(p.ctx)
}
