package session

import "context"

// worker is a cancellable goroutine.
type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newWorker(parent context.Context) (*worker, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &worker{cancel: cancel, done: make(chan struct{})}, ctx
}

func (w *worker) run(ctx context.Context, fn func(ctx context.Context) error) {
	go func() {
		defer close(w.done)
		w.err = fn(ctx)
	}()
}

// stop cancels the worker, waits for it and returns what its function
// returned. It must not be called from the worker's own goroutine.
func (w *worker) stop() error {
	if w == nil {
		return nil
	}
	w.cancel()
	<-w.done
	return w.err
}
