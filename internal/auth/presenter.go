package auth

import "sync"

// Presenter receives the progress of an attempt. Calls are made through the pipeline's
// Executor, in stage order, and never after the attempt is abandoned.
type Presenter interface {
	OnProgress(stage Stage)
	OnFailure(stage Stage, message string)
	OnSuccess(userID int64, sessionID string)
}

// NopPresenter ignores every notification.
type NopPresenter struct{}

func (NopPresenter) OnProgress(Stage) {}
func (NopPresenter) OnFailure(Stage, string) {}
func (NopPresenter) OnSuccess(int64, string) {}

// Executor decides where Presenter callbacks run.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

func (f ExecutorFunc) Execute(fn func()) { f(fn) }

// InlineExecutor runs callbacks on the attempt goroutine.
type InlineExecutor struct{}

func (InlineExecutor) Execute(fn func()) { fn() }

// SerialExecutor runs callbacks one at a time, in submission order, on a single
// goroutine it owns.
type SerialExecutor struct {
	queue chan func()
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewSerialExecutor starts the worker goroutine. buffer is the queue depth before
// Execute blocks.
func NewSerialExecutor(buffer int) *SerialExecutor {
	e := &SerialExecutor{
		queue: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(e.done)
		for fn := range e.queue {
			fn()
		}
	}()
	return e
}

// Execute queues fn. Calls after Close are dropped.
func (e *SerialExecutor) Execute(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.queue <- fn
}

// Close stops accepting work and waits for queued callbacks to finish.
func (e *SerialExecutor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
}
