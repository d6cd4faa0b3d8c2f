package controller

import "sync"

// Task is a unit of region control work. Tasks run to completion; they must
// not assume they can return and resume later.
type Task interface {
	Run()
}

// Executor is a single-consumer FIFO task queue. Tasks execute to completion
// in enqueue order; no two tasks run concurrently on one executor.
type Executor struct {
	mu        sync.Mutex
	tasks     chan Task
	available bool
	senders   sync.WaitGroup // in-flight Execute sends, drained before close
	wg        sync.WaitGroup
}

// NewExecutor builds an executor; call Init before Execute.
func NewExecutor() *Executor {
	return &Executor{}
}

// Init starts the consumer goroutine.
func (e *Executor) Init() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.available {
		return true
	}
	e.tasks = make(chan Task, 128)
	e.available = true
	e.wg.Add(1)
	go e.consume()
	return true
}

func (e *Executor) consume() {
	defer e.wg.Done()
	for task := range e.tasks {
		task.Run()
	}
}

// Execute enqueues a task; fails once the executor has been stopped. The
// send happens outside the mutex so a full queue only blocks this caller,
// never Execute/Stop calls on other executors' paths.
func (e *Executor) Execute(task Task) bool {
	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return false
	}
	tasks := e.tasks
	e.senders.Add(1)
	e.mu.Unlock()

	tasks <- task
	e.senders.Done()
	return true
}

// Stop closes intake, drains already-enqueued tasks and joins the consumer.
// The command log is authoritative, so queued work still runs. In-flight
// Execute sends finish first; the consumer keeps draining meanwhile.
func (e *Executor) Stop() {
	e.mu.Lock()
	if !e.available {
		e.mu.Unlock()
		return
	}
	e.available = false
	e.mu.Unlock()

	e.senders.Wait()
	close(e.tasks)
	e.wg.Wait()
}

// RegionControlExecutor is an Executor dedicated to one region.
type RegionControlExecutor struct {
	Executor
	regionID uint64
}

// NewRegionControlExecutor builds the per-region executor.
func NewRegionControlExecutor(regionID uint64) *RegionControlExecutor {
	return &RegionControlExecutor{regionID: regionID}
}

// RegionID returns the bound region.
func (e *RegionControlExecutor) RegionID() uint64 {
	return e.regionID
}
