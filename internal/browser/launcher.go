// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package browser launches the platform's default web browser at a URL.
// It is a thin, replaceable adapter: the coordination core only depends
// on the Launcher interface, never on os/exec directly.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
)

// Launcher opens a URL in a browser. Implementations are best-effort:
// a failure is reported, never panics.
type Launcher interface {
	Open(url string) error
}

// realLauncher shells out to the platform's "open a URL" command.
type realLauncher struct {
	// command overrides the platform auto-detected command when set.
	command string
}

// New creates a Launcher. If command is non-empty it is used verbatim
// (command followed by the URL as its sole argument) instead of the
// platform default.
func New(command string) Launcher {
	return &realLauncher{command: command}
}

func (l *realLauncher) Open(url string) error {
	name, args, err := l.resolve(url)
	if err != nil {
		return err
	}
	if err := exec.Command(name, args...).Start(); err != nil {
		return fmt.Errorf("open browser: %w", err)
	}
	return nil
}

func (l *realLauncher) resolve(url string) (string, []string, error) {
	if l.command != "" {
		return l.command, []string{url}, nil
	}
	switch runtime.GOOS {
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "linux":
		return "xdg-open", []string{url}, nil
	default:
		return "", nil, fmt.Errorf("open browser: unsupported platform %q", runtime.GOOS)
	}
}

// Noop is a Launcher that never opens anything, used when skip_browser
// is set.
type Noop struct{}

func (Noop) Open(string) error { return nil }

// Failing is a Launcher that always fails, for exercising the
// BrowserOpenFailed rollback path.
type Failing struct{ Err error }

func (f Failing) Open(string) error {
	if f.Err != nil {
		return f.Err
	}
	return fmt.Errorf("open browser: failed")
}
