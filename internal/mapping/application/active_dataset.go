package application

import (
	"context"
	"sync"
)

// DatasetListener is notified when the active dataset changes.
type DatasetListener func(ctx context.Context, datasetID *int64)

// ActiveDataset is an observable holder for the dataset a session works on.
// Listeners run on the goroutine calling Set, outside the internal lock.
type ActiveDataset struct {
	mu        sync.Mutex
	current   *int64
	version   uint64
	nextID    int
	listeners map[int]DatasetListener
}

// NewActiveDataset constructs an empty holder.
func NewActiveDataset() *ActiveDataset {
	return &ActiveDataset{listeners: make(map[int]DatasetListener)}
}

// Current returns a copy of the active dataset id, nil for the template.
func (a *ActiveDataset) Current() *int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyID(a.current)
}

// Version increments on every change.
func (a *ActiveDataset) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// Set changes the active dataset and notifies listeners. Setting the same
// value again is a no-op. It reports whether the value changed.
func (a *ActiveDataset) Set(ctx context.Context, datasetID *int64) bool {
	a.mu.Lock()
	if sameID(a.current, datasetID) && a.version > 0 {
		a.mu.Unlock()
		return false
	}
	a.current = copyID(datasetID)
	a.version++
	listeners := make([]DatasetListener, 0, len(a.listeners))
	for _, listener := range a.listeners {
		listeners = append(listeners, listener)
	}
	a.mu.Unlock()

	for _, listener := range listeners {
		listener(ctx, copyID(datasetID))
	}
	return true
}

// Subscribe registers a listener and returns a function removing it.
func (a *ActiveDataset) Subscribe(listener DatasetListener) func() {
	if listener == nil {
		return func() {}
	}
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = listener
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
