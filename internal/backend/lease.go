package backend

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Lease guards exclusive use of the accelerator behind an engine. Every page
// is recognized inside Do, which acquires the device and releases it when
// the page is done, whether it succeeded or not.
type Lease struct {
	sem *semaphore.Weighted
}

// NewLease returns a lease for one exclusive device.
func NewLease() *Lease {
	return &Lease{sem: semaphore.NewWeighted(1)}
}

// Do runs fn while holding the device.
func (l *Lease) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Acquire takes the device and returns the function giving it back. Work
// that can outlive its caller, such as an in-process OCR run abandoned at
// a page deadline, releases the device itself once it really finishes.
func (l *Lease) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { l.sem.Release(1) }) }, nil
}

// Held reports whether the device is currently in use.
func (l *Lease) Held() bool {
	if l.sem.TryAcquire(1) {
		l.sem.Release(1)
		return false
	}
	return true
}
