// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package waiter implements a generic one-to-many notification primitive
// keyed by an arbitrary string identifier. It underlies both the
// question-scoped and session-scoped blocking reads in internal/session.
package waiter

import "sync"

// Callback receives a single notification payload.
type Callback func(payload any)

// Cleanup idempotently removes a previously registered callback. Calling
// it more than once, or after the callback has already fired, is a no-op.
type Cleanup func()

// Registry holds, for each key, an ordered list of callbacks awaiting
// notification on that key.
type Registry struct {
	mu   sync.Mutex
	subs map[string][]*entry
	next uint64
}

type entry struct {
	id      uint64
	cb      Callback
	removed bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{subs: make(map[string][]*entry)}
}

// Register appends cb to key's waiter list and returns a Cleanup that
// removes it. Registration order is preserved across concurrent callers:
// each callback is appended to key's list under the registry mutex, and
// NotifyFirst always takes the head of that list.
func (r *Registry) Register(key string, cb Callback) Cleanup {
	r.mu.Lock()
	r.next++
	e := &entry{id: r.next, cb: cb}
	r.subs[key] = append(r.subs[key], e)
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if e.removed {
			return
		}
		e.removed = true
		list := r.subs[key]
		for i, cand := range list {
			if cand == e {
				r.subs[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(r.subs[key]) == 0 {
			delete(r.subs, key)
		}
	}
}

// NotifyAll invokes every callback currently registered for key exactly
// once, then removes all of them. Callbacks registered after the
// snapshot is taken (i.e. from inside a firing callback, or racing with
// this call) are not notified by this call.
func (r *Registry) NotifyAll(key string, payload any) {
	r.mu.Lock()
	list := r.subs[key]
	delete(r.subs, key)
	for _, e := range list {
		e.removed = true
	}
	r.mu.Unlock()

	for _, e := range list {
		e.cb(payload)
	}
}

// NotifyFirst invokes the oldest surviving callback registered for key,
// if any, and removes it. Concurrent Register calls on the same key are
// delivered to in strict FIFO order across NotifyFirst calls.
func (r *Registry) NotifyFirst(key string, payload any) {
	r.mu.Lock()
	list := r.subs[key]
	if len(list) == 0 {
		r.mu.Unlock()
		return
	}
	e := list[0]
	r.subs[key] = list[1:]
	if len(r.subs[key]) == 0 {
		delete(r.subs, key)
	}
	e.removed = true
	r.mu.Unlock()

	e.cb(payload)
}

// Clear removes every callback registered for key without invoking them.
func (r *Registry) Clear(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.subs[key] {
		e.removed = true
	}
	delete(r.subs, key)
}
