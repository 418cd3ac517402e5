package observable

import "sync"

// Value holds a snapshot that can be read at any time and observed for
// changes. Subscribers are called synchronously, in subscription order, after
// every Set. A subscriber must not call Set on the same Value.
type Value[T any] struct {
	mu     sync.RWMutex
	notify sync.Mutex
	v      T
	subs   map[uint64]func(T)
	order  []uint64
	nextID uint64
}

// New creates a Value holding initial.
func New[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[uint64]func(T))}
}

// Get returns the current snapshot.
func (o *Value[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.v
}

// Set replaces the snapshot and notifies subscribers. Notifications of
// concurrent Sets are delivered in the order the values were stored.
func (o *Value[T]) Set(v T) {
	o.notify.Lock()
	defer o.notify.Unlock()

	o.mu.Lock()
	o.v = v
	fns := o.subscribers()
	o.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Update applies fn to the current snapshot and stores the result.
func (o *Value[T]) Update(fn func(T) T) {
	o.notify.Lock()
	defer o.notify.Unlock()

	o.mu.Lock()
	v := fn(o.v)
	o.v = v
	fns := o.subscribers()
	o.mu.Unlock()

	for _, f := range fns {
		f(v)
	}
}

// Subscribe registers fn for future changes and returns a function that
// removes it. fn is not called with the current value.
func (o *Value[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.subs[id] = fn
	o.order = append(o.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			for i, sid := range o.order {
				if sid == id {
					o.order = append(o.order[:i], o.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Len returns the number of active subscribers.
func (o *Value[T]) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs)
}

// subscribers must be called with mu held.
func (o *Value[T]) subscribers() []func(T) {
	fns := make([]func(T), 0, len(o.order))
	for _, id := range o.order {
		fns = append(fns, o.subs[id])
	}
	return fns
}
