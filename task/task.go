// Package task implements Lilac's task manager (spec.md 4.I): a
// registry of long-running, shardable operations (pipeline runs,
// enrichments, concept syncs) with aggregated progress, a point-in-time
// manifest, and cooperative cancellation.
//
// The sharded worker-pool pattern here is a generalization of the
// executor package's reader/worker-pool/collector pattern
// (executor/executor.go's runText/runSplitter/runEmbedding), itself
// adapted from the teacher's ingest pipeline: a bounded pool of
// goroutines processes independent units of work. Unlike the
// executor's single collector, every shard goroutine updates its task's
// state itself, under the task entry's mutex, which is held only for
// each short update. The atomic task-id counter follows the
// teacher's atomic generation counter in internal/control/control.go.
package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ShardProgress is one shard's completion count against its estimate.
type ShardProgress struct {
	Current   int
	Estimated int
}

// Fraction returns Current/Estimated, or 0 if Estimated is not yet known.
func (p ShardProgress) Fraction() float64 {
	if p.Estimated <= 0 {
		return 0
	}
	f := float64(p.Current) / float64(p.Estimated)
	if f > 1 {
		f = 1
	}
	return f
}

// Task is a snapshot of one managed operation.
type Task struct {
	ID        string
	Name      string
	Type      string
	Status    Status
	Progress  float64
	Shards    map[string]ShardProgress
	StartedAt time.Time
	EndedAt   time.Time
	Error     string
}

// ShardFunc is one shard's unit of work. report should be called as
// progress is made; work should check ctx.Done() at batch boundaries
// so Stop can cancel it cooperatively.
type ShardFunc func(ctx context.Context, shard int, report func(current, estimated int)) error

type entry struct {
	mu     sync.Mutex
	task   Task
	cancel context.CancelFunc
	done   chan struct{}
}

func (e *entry) snapshot() Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	t := e.task
	t.Shards = make(map[string]ShardProgress, len(e.task.Shards))
	for k, v := range e.task.Shards {
		t.Shards[k] = v
	}
	return t
}

// Manager owns a thread pool (bounded in-process goroutines, for
// sharded work that runs within this process) and a process pool
// (bounded external subprocesses, for shards that run as separate OS
// processes — grounded on the teacher's os/exec usage in
// internal/ingest/git.go). Both are plain counting semaphores, the
// same shape as executor.Executor's worker count.
type Manager struct {
	mu        sync.Mutex
	tasks     map[string]*entry
	order     []string
	nextID    uint64
	threadSem chan struct{}
	procSem   chan struct{}
}

// NewManager creates a Manager with the given thread- and process-pool
// capacities.
func NewManager(threadWorkers, processWorkers int) *Manager {
	if threadWorkers < 1 {
		threadWorkers = 1
	}
	if processWorkers < 1 {
		processWorkers = 1
	}
	return &Manager{
		tasks:     map[string]*entry{},
		threadSem: make(chan struct{}, threadWorkers),
		procSem:   make(chan struct{}, processWorkers),
	}
}

func (m *Manager) newID(taskType string) string {
	n := atomic.AddUint64(&m.nextID, 1)
	return fmt.Sprintf("%s-%d", taskType, n)
}

// RunSharded starts name/taskType as a task split into shardCount
// independent shards, each run through the thread pool, and returns its
// task id immediately. Progress is the mean of each shard's fraction
// complete. The first shard error wins the task's recorded error and
// flips its status to error; shards that finish afterward still update
// EndedAt but never revert the status away from error.
func (m *Manager) RunSharded(ctx context.Context, name, taskType string, shardCount int, work ShardFunc) string {
	id := m.newID(taskType)
	runCtx, cancel := context.WithCancel(ctx)

	shards := make(map[string]ShardProgress, shardCount)
	for i := 0; i < shardCount; i++ {
		shards[shardKey(i)] = ShardProgress{}
	}
	e := &entry{
		task: Task{
			ID:        id,
			Name:      name,
			Type:      taskType,
			Status:    StatusRunning,
			Shards:    shards,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.tasks[id] = e
	m.order = append(m.order, id)
	m.mu.Unlock()

	go m.runShards(runCtx, e, shardCount, work)
	return id
}

func (m *Manager) runShards(ctx context.Context, e *entry, shardCount int, work ShardFunc) {
	var wg sync.WaitGroup
	for i := 0; i < shardCount; i++ {
		wg.Add(1)
		go func(shard int) {
			defer wg.Done()
			select {
			case m.threadSem <- struct{}{}:
			case <-ctx.Done():
				m.recordError(e, fmt.Errorf("cancelled"))
				return
			}
			defer func() { <-m.threadSem }()

			key := shardKey(shard)
			report := func(current, estimated int) { m.updateShard(e, key, current, estimated) }
			if err := work(ctx, shard, report); err != nil {
				if ctx.Err() != nil {
					err = fmt.Errorf("cancelled")
				}
				m.recordError(e, err)
				return
			}
			m.completeShard(e, key)
		}(i)
	}
	wg.Wait()
	m.finish(e)
	close(e.done)
}

func shardKey(i int) string { return fmt.Sprintf("%d", i) }

func (m *Manager) updateShard(e *entry, key string, current, estimated int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.task.Shards[key] = ShardProgress{Current: current, Estimated: estimated}
	recomputeProgress(&e.task)
}

func (m *Manager) completeShard(e *entry, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.task.Shards[key]
	if prev.Estimated <= 0 {
		prev.Estimated = 1
	}
	prev.Current = prev.Estimated
	e.task.Shards[key] = prev
	if e.task.Status == StatusError {
		e.task.EndedAt = time.Now()
	}
	recomputeProgress(&e.task)
}

func recomputeProgress(t *Task) {
	if len(t.Shards) == 0 {
		return
	}
	var total float64
	for _, s := range t.Shards {
		total += s.Fraction()
	}
	t.Progress = total / float64(len(t.Shards))
}

// recordError sets the task to error state on its first error only;
// later calls (from other shards still winding down) still bump
// EndedAt but never change Status or Error once set (spec.md 4.I:
// "subsequent shard completions mutate end_ts but not status").
func (m *Manager) recordError(e *entry, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task.Status != StatusError {
		e.task.Status = StatusError
		e.task.Error = err.Error()
	}
	e.task.EndedAt = time.Now()
}

func (m *Manager) finish(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.task.Status != StatusError {
		e.task.Status = StatusCompleted
		e.task.Progress = 1
	}
	e.task.EndedAt = time.Now()
}

// Manifest returns a snapshot of every known task, ordered by creation.
func (m *Manager) Manifest() []Task {
	m.mu.Lock()
	ids := append([]string(nil), m.order...)
	m.mu.Unlock()

	out := make([]Task, 0, len(ids))
	for _, id := range ids {
		m.mu.Lock()
		e := m.tasks[id]
		m.mu.Unlock()
		if e != nil {
			out = append(out, e.snapshot())
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Get returns a single task's current snapshot.
func (m *Manager) Get(id string) (Task, bool) {
	m.mu.Lock()
	e := m.tasks[id]
	m.mu.Unlock()
	if e == nil {
		return Task{}, false
	}
	return e.snapshot(), true
}

// Stop cancels a running task cooperatively: its shard work functions
// must observe ctx.Done() (typically at a batch boundary) and return,
// after which the task settles into error status with reason
// "cancelled". Stop does not block until that happens; call Wait for
// that.
func (m *Manager) Stop(id string) error {
	m.mu.Lock()
	e := m.tasks[id]
	m.mu.Unlock()
	if e == nil {
		return fmt.Errorf("task: unknown task %q", id)
	}
	e.cancel()
	return nil
}

// Wait blocks until every named task (or, with no ids, every task
// currently known to the manager) has reached a terminal status.
func (m *Manager) Wait(ids ...string) error {
	m.mu.Lock()
	if len(ids) == 0 {
		ids = append([]string(nil), m.order...)
	}
	var dones []chan struct{}
	for _, id := range ids {
		e := m.tasks[id]
		if e == nil {
			m.mu.Unlock()
			return fmt.Errorf("task: unknown task %q", id)
		}
		dones = append(dones, e.done)
	}
	m.mu.Unlock()

	for _, done := range dones {
		<-done
	}
	return nil
}
