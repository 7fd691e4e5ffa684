package visionedge

import (
	"context"
	"errors"
	"sync"
)

// Pool holds a fixed number of sessions of the same model, each session is
// used by one goroutine at a time so frames can be inferred in parallel
type Pool struct {
	idle      chan *Runtime
	size      int
	closeOnce sync.Once
}

// NewPool opens size sessions of modelFile, a size below 1 opens one
func NewPool(size int, modelFile string, opts RuntimeOptions) (*Pool, error) {

	size = max(1, size)

	p := &Pool{
		idle: make(chan *Runtime, size),
		size: size,
	}

	for i := 0; i < size; i++ {
		rt, err := NewRuntime(modelFile, opts)

		if err != nil {
			// release sessions opened so far
			p.Close()
			return nil, err
		}

		p.idle <- rt
	}

	return p, nil
}

// Get takes an idle runtime, blocking until one is returned
func (p *Pool) Get() *Runtime {
	return <-p.idle
}

// GetContext takes an idle runtime, returning ErrCancelled if ctx is done
// first
func (p *Pool) GetContext(ctx context.Context) (*Runtime, error) {

	select {
	case rt, ok := <-p.idle:
		if !ok {
			return nil, errors.New("runtime pool closed")
		}

		return rt, nil

	case <-ctx.Done():
		return nil, errors.Join(ErrCancelled, ctx.Err())
	}
}

// Return hands a runtime back to the pool, it is dropped if the pool is
// already full
func (p *Pool) Return(rt *Runtime) {
	select {
	case p.idle <- rt:
	default:
	}
}

// Size returns the number of sessions the pool was opened with
func (p *Pool) Size() int {
	return p.size
}

// Close releases every idle runtime.  Runtimes taken at the time of closing
// must not be returned
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.idle)

		for rt := range p.idle {
			_ = rt.Close()
		}
	})
}
