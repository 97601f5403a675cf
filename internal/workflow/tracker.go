package workflow

import (
	"context"
	"sync"
)

// TaskStatus is the state of one tracked task.
type TaskStatus string

const (
	TaskIdle    TaskStatus = "idle"
	TaskPending TaskStatus = "pending"
	TaskReady   TaskStatus = "ready"
	TaskError   TaskStatus = "error"
)

// TaskState is the tracked state of one key.
type TaskState[V any] struct {
	Status     TaskStatus
	Value      V // Last resolved value; kept while a newer task is pending
	Err        error
	Generation uint64
}

// Ticket identifies one started task. Only the ticket of the latest
// generation for its key may settle the entry.
type Ticket[K comparable] struct {
	Key        K
	Generation uint64
}

// Tracker is a keyed registry of asynchronous tasks. Starting a task for a
// key supersedes any task still pending for it; results carrying an older
// generation are discarded.
type Tracker[K comparable, V any] struct {
	mu       sync.Mutex
	next     uint64
	entries  map[K]*TaskState[V]
	onChange func(K, TaskState[V])
}

// NewTracker creates an empty tracker.
func NewTracker[K comparable, V any]() *Tracker[K, V] {
	return &Tracker[K, V]{entries: make(map[K]*TaskState[V])}
}

// OnChange registers fn to be called after every applied state change.
// fn runs outside the tracker lock.
func (t *Tracker[K, V]) OnChange(fn func(K, TaskState[V])) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Begin starts a task for key and returns its ticket.
func (t *Tracker[K, V]) Begin(key K) Ticket[K] {
	t.mu.Lock()
	tk, state := t.beginLocked(key)
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(key, state)
	}
	return tk
}

// TryBegin starts a task for key unless one is already pending.
func (t *Tracker[K, V]) TryBegin(key K) (Ticket[K], bool) {
	t.mu.Lock()
	if e, ok := t.entries[key]; ok && e.Status == TaskPending {
		t.mu.Unlock()
		return Ticket[K]{}, false
	}
	tk, state := t.beginLocked(key)
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(key, state)
	}
	return tk, true
}

func (t *Tracker[K, V]) beginLocked(key K) (Ticket[K], TaskState[V]) {
	// Generations come from one counter so they stay unique across Reset.
	t.next++
	e, ok := t.entries[key]
	if !ok {
		e = &TaskState[V]{}
		t.entries[key] = e
	}
	e.Status = TaskPending
	e.Err = nil
	e.Generation = t.next
	return Ticket[K]{Key: key, Generation: t.next}, *e
}

// Resolve settles the task with a value. It reports false and changes
// nothing when the ticket has been superseded.
func (t *Tracker[K, V]) Resolve(tk Ticket[K], v V) bool {
	return t.settle(tk, func(e *TaskState[V]) {
		e.Status = TaskReady
		e.Value = v
		e.Err = nil
	})
}

// Fail settles the task with an error. It reports false and changes
// nothing when the ticket has been superseded.
func (t *Tracker[K, V]) Fail(tk Ticket[K], err error) bool {
	return t.settle(tk, func(e *TaskState[V]) {
		e.Status = TaskError
		e.Err = err
	})
}

func (t *Tracker[K, V]) settle(tk Ticket[K], apply func(*TaskState[V])) bool {
	t.mu.Lock()
	e, ok := t.entries[tk.Key]
	if !ok || e.Generation != tk.Generation || e.Status != TaskPending {
		t.mu.Unlock()
		return false
	}
	apply(e)
	state := *e
	fn := t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(tk.Key, state)
	}
	return true
}

// Current reports whether tk is still the latest pending task for its key.
func (t *Tracker[K, V]) Current(tk Ticket[K]) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[tk.Key]
	return ok && e.Generation == tk.Generation && e.Status == TaskPending
}

// Do runs op as a tracked task for key. It returns the op's result and
// whether that result was applied to the tracker.
func (t *Tracker[K, V]) Do(ctx context.Context, key K, op func(context.Context) (V, error)) (V, bool, error) {
	tk := t.Begin(key)
	v, err := op(ctx)
	if err != nil {
		return v, t.Fail(tk, err), err
	}
	return v, t.Resolve(tk, v), nil
}

// Get returns the state of key. Unknown keys report TaskIdle.
func (t *Tracker[K, V]) Get(key K) TaskState[V] {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		return TaskState[V]{Status: TaskIdle}
	}
	return *e
}

// Pending reports whether a task for key is in flight.
func (t *Tracker[K, V]) Pending(key K) bool {
	return t.Get(key).Status == TaskPending
}

// Keys returns every key that has been started.
func (t *Tracker[K, V]) Keys() []K {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]K, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	return keys
}

// Reset forgets every entry. Tickets issued before the reset can no longer
// settle anything.
func (t *Tracker[K, V]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[K]*TaskState[V])
}
