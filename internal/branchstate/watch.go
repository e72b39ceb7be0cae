// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package branchstate

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ownWriteGrace is how long after the store's own write a matching
// fsnotify event for the same path is assumed to be the echo of that
// write rather than an external edit.
const ownWriteGrace = 500 * time.Millisecond

// stateWatcher watches a state directory for edits that did not originate
// from this store's own writer and reports the affected session id.
type stateWatcher struct {
	fs         *fsnotify.Watcher
	debouncer  *debouncer
	onExternal func(sessionID string)

	mu       sync.Mutex
	ownWrite map[string]time.Time

	closeCh chan struct{}
}

func newStateWatcher(dir string, onExternal func(sessionID string)) (*stateWatcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create state watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch state dir: %w", err)
	}

	w := &stateWatcher{
		fs:         fs,
		debouncer:  newDebouncer(100 * time.Millisecond),
		onExternal: onExternal,
		ownWrite:   make(map[string]time.Time),
		closeCh:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// markOwnWrite records that the store itself just replaced path, so the
// fsnotify event that rename produces is not mistaken for an external
// edit.
func (w *stateWatcher) markOwnWrite(path string) {
	w.mu.Lock()
	w.ownWrite[path] = time.Now()
	w.mu.Unlock()
}

func (w *stateWatcher) run() {
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *stateWatcher) handleEvent(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}
	base := filepath.Base(ev.Name)
	if !strings.HasSuffix(base, ".json") {
		return
	}
	sessionID := strings.TrimSuffix(base, ".json")

	w.mu.Lock()
	last, recent := w.ownWrite[ev.Name]
	w.mu.Unlock()
	if recent && time.Since(last) < ownWriteGrace {
		return
	}

	w.debouncer.debounce(sessionID, func() {
		w.onExternal(sessionID)
	})
}

func (w *stateWatcher) close() {
	close(w.closeCh)
	w.debouncer.stop()
	w.fs.Close()
}
