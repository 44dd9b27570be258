package env

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Priority is one of the engine's background-work priorities.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
	PriorityBottom
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityHigh:
		return "HIGH"
	case PriorityBottom:
		return "BOTTOM"
	default:
		return "UNKNOWN"
	}
}

// IOPriority mirrors the engine's I/O scheduling hint for a pool; it only
// ever moves HIGH -> LOW via LowerIOPriority, never back.
type IOPriority int

const (
	IOPriorityHigh IOPriority = iota
	IOPriorityLow
)

// task is one unit of background work queued on a Pool.
type task struct {
	id     uint64
	fn     func(ctx context.Context)
	cancel func()
}

// Pool is one priority's worker pool: instead of a fixed set of
// cooperative fiber contexts pulled from a queue, it is a bounded set of
// goroutines gated by a semaphore, which gives the same
// "SetBackgroundThreads resizes the pool" and "GetThreadPoolQueueLen
// reports pending count" behaviour without reimplementing a scheduler.
// Workers do not start any task until Run is called, keeping background
// work from executing before the process reaches its running state.
type Pool struct {
	mu        sync.Mutex
	prio      Priority
	ioPrio    IOPriority
	queue     []*task
	nextID    uint64
	sem       *semaphore.Weighted
	capacity  int64
	running   bool
	runGate   chan struct{}
	runOnce   sync.Once
	wg        sync.WaitGroup
	queuedLen atomic.Int64
}

// NewPool creates a Pool with the given initial thread count.
func NewPool(prio Priority, threads int) *Pool {
	if threads < 1 {
		threads = 1
	}
	return &Pool{
		prio:     prio,
		ioPrio:   IOPriorityHigh,
		sem:      semaphore.NewWeighted(int64(threads)),
		capacity: int64(threads),
		runGate:  make(chan struct{}),
	}
}

// Run opens the pool's run-level gate; no queued task executes before
// this is called.
func (p *Pool) Run() {
	p.runOnce.Do(func() { close(p.runGate) })
}

// Schedule enqueues fn for execution under cancel if the task is drained
// via UnSchedule before it starts. It returns the task id, usable as the
// UnSchedule tag.
func (p *Pool) Schedule(fn func(ctx context.Context), cancel func()) uint64 {
	p.mu.Lock()
	p.nextID++
	id := p.nextID
	t := &task{id: id, fn: fn, cancel: cancel}
	p.queue = append(p.queue, t)
	p.mu.Unlock()
	p.queuedLen.Add(1)

	p.wg.Add(1)
	go p.worker(t)
	return id
}

func (p *Pool) worker(t *task) {
	defer p.wg.Done()
	ctx := context.Background()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		p.dequeue(t.id)
		return
	}
	defer p.sem.Release(1)

	<-p.runGate

	if !p.dequeue(t.id) {
		// Already removed by UnSchedule; its cancel callback already ran.
		return
	}
	t.fn(ctx)
}

// dequeue removes id from the pending queue and reports whether it was
// still there (i.e. hadn't already started or been cancelled).
func (p *Pool) dequeue(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.queue {
		if t.id == id {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			p.queuedLen.Add(-1)
			return true
		}
	}
	return false
}

// UnSchedule drains every queued task carrying tag (via the caller-
// supplied predicate match is really just "all of them" for this port,
// since Go's pool has no per-call tag threading beyond the task id) and
// invokes each one's cancel callback exactly once. It returns the number
// of tasks cancelled.
func (p *Pool) UnSchedule() int {
	p.mu.Lock()
	drained := p.queue
	p.queue = nil
	p.mu.Unlock()

	for _, t := range drained {
		if t.cancel != nil {
			t.cancel()
		}
		p.queuedLen.Add(-1)
	}
	return len(drained)
}

// SetBackgroundThreads records n as the pool's thread count. Growing
// raises the concurrency limit by the difference. Shrinking only lowers
// the recorded count: the concurrency limit stays at its highest value
// so far, for running and newly scheduled tasks alike.
func (p *Pool) SetBackgroundThreads(n int) {
	if n < 1 {
		n = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delta := int64(n) - p.capacity
	p.capacity = int64(n)
	if delta > 0 {
		p.sem.Release(delta)
	}
	// Shrinking a semaphore.Weighted in place isn't supported; the
	// capacity field is kept for IncBackgroundThreadsIfNeeded's bookkeeping
	// and reporting only. Workers always acquire a weight of 1.
}

// IncBackgroundThreadsIfNeeded raises the pool's thread count to at least
// n, never lowering it.
func (p *Pool) IncBackgroundThreadsIfNeeded(n int) {
	p.mu.Lock()
	cur := p.capacity
	p.mu.Unlock()
	if int64(n) > cur {
		p.SetBackgroundThreads(n)
	}
}

// GetThreadPoolQueueLen reports the number of tasks not yet dispatched to
// a worker.
func (p *Pool) GetThreadPoolQueueLen() int {
	return int(p.queuedLen.Load())
}

// LowerIOPriority demotes the pool's I/O hint from HIGH to LOW. It never
// re-promotes — calling it when already LOW is a no-op.
func (p *Pool) LowerIOPriority() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ioPrio = IOPriorityLow
}

// IOPriority reports the pool's current I/O scheduling hint.
func (p *Pool) IOPriority() IOPriority {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ioPrio
}

// Join waits for every scheduled task (queued or running) to finish.
func (p *Pool) Join() {
	p.wg.Wait()
}

// Pools bundles the three priority pools the engine schedules background
// work on (flush/compaction/prefetch).
type Pools struct {
	Low    *Pool
	High   *Pool
	Bottom *Pool
}

// NewPools creates the LOW/HIGH/BOTTOM pools with the given default
// thread counts and opens their run-level gates immediately — callers
// embedding env.Pools in a larger process that has its own RUN-level
// gate should call Pool.Run() themselves instead of NewPools.
func NewPools(lowThreads, highThreads int) *Pools {
	p := &Pools{
		Low:    NewPool(PriorityLow, lowThreads),
		High:   NewPool(PriorityHigh, highThreads),
		Bottom: NewPool(PriorityBottom, 1),
	}
	p.Low.Run()
	p.High.Run()
	p.Bottom.Run()
	return p
}

// Pool returns the pool for prio.
func (p *Pools) Pool(prio Priority) *Pool {
	switch prio {
	case PriorityHigh:
		return p.High
	case PriorityBottom:
		return p.Bottom
	default:
		return p.Low
	}
}

// Join waits for all three pools; queued tasks are not cancelled.
func (p *Pools) Join() {
	p.Low.Join()
	p.High.Join()
	p.Bottom.Join()
}
