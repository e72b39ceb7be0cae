// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package branchstate

import (
	"sync"
	"time"
)

const defaultDebounceWindow = 100 * time.Millisecond

// debouncer coalesces repeated external-edit notifications for the same
// session into a single invalidation. Editors often produce several
// filesystem events for one logical save.
type debouncer struct {
	mu     sync.Mutex
	window time.Duration
	timers map[string]*time.Timer
}

func newDebouncer(window time.Duration) *debouncer {
	if window <= 0 {
		window = defaultDebounceWindow
	}
	return &debouncer{window: window, timers: make(map[string]*time.Timer)}
}

func (d *debouncer) debounce(key string, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if t, exists := d.timers[key]; exists {
		t.Stop()
	}
	d.timers[key] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		delete(d.timers, key)
		d.mu.Unlock()
		fn()
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
}
