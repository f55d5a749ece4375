package lazyload

import "context"

// Loader fills a relation on a single parent.
type Loader[M any] func(ctx context.Context, parent *M) error

// Lazy is a relation handle carried by an entity. A query collected with
// ModelQuery.Lazy attaches a loader to it; the first Load runs the loader and
// every later Load is free.
//
// A zero Lazy is unattached and Load does nothing. The loader keeps the runner
// it was collected with, so loading after that runner is closed fails.
type Lazy[M any] struct {
	load   Loader[M]
	loaded bool
}

func (l *Lazy[M]) Load(ctx context.Context, parent *M) error {
	if l.loaded || l.load == nil {
		return nil
	}

	if err := l.load(ctx, parent); err != nil {
		return err
	}

	l.markLoaded()

	return nil
}

// Loaded reports whether the relation has been filled, by any strategy.
func (l *Lazy[M]) Loaded() bool {
	return l.loaded
}

// Attached reports whether a pending loader is waiting for the first access.
func (l *Lazy[M]) Attached() bool {
	return l.load != nil
}

func (l *Lazy[M]) attach(load Loader[M]) {
	l.load = load
	l.loaded = false
}

func (l *Lazy[M]) markLoaded() {
	l.load = nil
	l.loaded = true
}
