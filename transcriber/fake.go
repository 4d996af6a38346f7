package transcriber

import (
	"context"
	"sync"
)

// Fake is a scripted Pipeline for tests. It records every invocation so
// tests can assert exactly how many network round trips would have happened.
type Fake struct {
	mu    sync.Mutex
	raw   string
	ref   string
	err   error
	calls int
	hook  func(opts Options)
}

func NewFake(raw, refined string, err error) *Fake {
	return &Fake{raw: raw, ref: refined, err: err}
}

// SetResult reprograms the scripted outcome, e.g. between a failure and the
// retry that should succeed.
func (f *Fake) SetResult(raw, refined string, err error) {
	f.mu.Lock()
	f.raw, f.ref, f.err = raw, refined, err
	f.mu.Unlock()
}

// OnProcess installs a hook invoked (outside the lock) on every call.
func (f *Fake) OnProcess(hook func(opts Options)) {
	f.mu.Lock()
	f.hook = hook
	f.mu.Unlock()
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Process(_ context.Context, _ []byte, opts Options) (Result, error) {
	f.mu.Lock()
	f.calls++
	raw, ref, err := f.raw, f.ref, f.err
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		hook(opts)
	}
	if err != nil {
		return Result{}, err
	}
	res := Result{Raw: raw}
	if opts.Refine {
		res.Refined = ref
		if res.Refined == "" {
			res.Refined = raw
		}
	}
	return res, nil
}
