package indexer

import "context"

// Pending is the completion handle of an asynchronous index hook.
type Pending struct {
	done chan struct{}
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Done is closed when the hook has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the hook outcome. It is nil until Done is closed.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the hook finishes or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pending) finish(err error) {
	p.err = err
	close(p.done)
}

// Completed returns an already finished Pending.
func Completed(err error) *Pending {
	p := newPending()
	p.finish(err)
	return p
}
