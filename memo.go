package csmap

import (
	"fmt"
	"sync"
)

// Memo is a concurrent compute-once cache. For every key the compute
// function runs at most once; callers asking for a key whose computation is
// in flight block until it finishes and then observe the same result.
//
//	groups := csmap.NewMemo(func(k key) (*Output, error) {
//	    return partition(k), nil
//	})
//	out, err := groups.Get(k)
type Memo[K comparable, V any] struct {
	compute func(K) (V, error)

	mu      sync.Mutex
	entries map[K]*memoEntry[V]
}

type memoEntry[V any] struct {
	once  sync.Once
	val   V
	err   error
	fault any
	done  bool
}

// NewMemo returns a Memo backed by the given compute function.
func NewMemo[K comparable, V any](compute func(K) (V, error)) *Memo[K, V] {
	return &Memo[K, V]{
		compute: compute,
		entries: make(map[K]*memoEntry[V]),
	}
}

// Get returns the memoized value for key, computing it on first use.
// Errors are memoized too: a failed computation is not retried.
func (m *Memo[K, V]) Get(key K) (V, error) {
	v, _, err := m.Lookup(key)
	return v, err
}

// Lookup is like Get and also reports whether this call ran the
// computation. A computation that panics is not retried either: every later
// lookup of its key panics with the same value.
func (m *Memo[K, V]) Lookup(key K) (V, bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &memoEntry[V]{}
		m.entries[key] = e
	}
	m.mu.Unlock()

	var computed bool
	e.once.Do(func() {
		computed = true
		defer func() {
			if e.done {
				return
			}
			if r := recover(); r != nil {
				e.fault = r
				panic(r)
			}
		}()
		e.val, e.err = m.compute(key)
		e.done = true
	})
	if !e.done {
		if e.fault == nil {
			panic(fmt.Sprintf("csmap: computation of %v did not return", key))
		}
		panic(e.fault)
	}
	return e.val, computed, e.err
}

// Len returns the number of keys requested so far.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
