// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires together the coordination core — configuration,
// branch state store, session store, probe, orchestrator, and the
// tool-call surface — into a single runnable service.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"github.com/wingedpig/brainloom/internal/branchstate"
	"github.com/wingedpig/brainloom/internal/browser"
	"github.com/wingedpig/brainloom/internal/config"
	"github.com/wingedpig/brainloom/internal/orchestrator"
	"github.com/wingedpig/brainloom/internal/probe"
	"github.com/wingedpig/brainloom/internal/session"
	"github.com/wingedpig/brainloom/internal/toolsurface"
)

// createSummaryPattern extracts the session id from create_brainstorm's
// "Started brainstorm <id> with branches [...] at <url>" summary text —
// the id is not returned structurally since create_brainstorm's public
// contract is summary text only.
var createSummaryPattern = regexp.MustCompile(`Started brainstorm (\S+)`)

// Options configures App construction.
type Options struct {
	ConfigPath  string // empty means use config.Default()
	Host        string // overrides config.Server.Host when non-empty
	Port        int    // overrides config.Server.Port when non-zero
	SkipBrowser bool   // overrides config.Browser.Skip when true
	Version     string
}

// App is the process-scoped container for every singleton the core
// needs: the state-store directory and the set of live sessions are
// instantiated once here and torn down on Close.
type App struct {
	cfg     *config.Config
	version string

	state    *branchstate.Store
	sessions *session.Store
	orch     *orchestrator.Orchestrator
	surface  *toolsurface.Surface
}

// New loads configuration and wires every component.
func New(opts Options) (*App, error) {
	var cfg *config.Config
	if opts.ConfigPath != "" {
		loaded, err := config.NewLoader().LoadWithDefaults(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.SkipBrowser {
		cfg.Browser.Skip = true
	}
	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	state, err := branchstate.NewStore(cfg.State.Dir, cfg.State.Watch)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	sessions := session.NewStore(session.Options{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		SkipBrowser: cfg.Browser.Skip,
		Launcher:    browser.New(cfg.Browser.Command),
	})

	var prober probe.Prober = probe.NewRulesProber(cfg.Probe.MaxAnswersPerBranch)

	orch := orchestrator.New(sessions, state, prober, orchestrator.Options{
		DefaultTimeout: time.Duration(cfg.Session.DefaultTimeoutMs) * time.Millisecond,
		ReviewTimeout:  time.Duration(cfg.Session.ReviewTimeoutMs) * time.Millisecond,
		MaxIterations:  cfg.Session.MaxIterations,
	})

	return &App{
		cfg:      cfg,
		version:  opts.Version,
		state:    state,
		sessions: sessions,
		orch:     orch,
		surface:  toolsurface.New(sessions, orch),
	}, nil
}

// Close tears down the state store's filesystem watcher and actors.
func (a *App) Close() {
	a.state.Close()
}

// Surface exposes the tool-call surface for an embedding agent.
func (a *App) Surface() *toolsurface.Surface {
	return a.surface
}

// BranchSeed describes one branch as loaded from a JSON branches file,
// mirroring orchestrator.BranchSpec without the Go-only types.
type BranchSeed struct {
	ID              string `json:"id"`
	Scope           string `json:"scope"`
	InitialQuestion struct {
		Type   string         `json:"type"`
		Config map[string]any `json:"config"`
	} `json:"initial_question"`
}

// LoadBranches reads a JSON array of BranchSeed from path.
func LoadBranches(path string) ([]orchestrator.BranchSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read branches file: %w", err)
	}
	var seeds []BranchSeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse branches file: %w", err)
	}

	out := make([]orchestrator.BranchSpec, 0, len(seeds))
	for _, s := range seeds {
		out = append(out, orchestrator.BranchSpec{
			ID:    s.ID,
			Scope: s.Scope,
			InitialQuestion: orchestrator.InitialQuestion{
				Type:   s.InitialQuestion.Type,
				Config: s.InitialQuestion.Config,
			},
		})
	}
	return out, nil
}

// RunBrainstorm drives one full cycle: create_brainstorm,
// await_brainstorm_complete, and end_brainstorm, returning the final
// findings summary. It lets the whole core be exercised without an
// agent attached.
func (a *App) RunBrainstorm(ctx context.Context, request string, branches []orchestrator.BranchSpec) (string, error) {
	createSummary, err := a.surface.CreateBrainstorm(request, branches)
	if err != nil {
		return "", fmt.Errorf("run brainstorm: %w", err)
	}
	log.Println(createSummary)

	match := createSummaryPattern.FindStringSubmatch(createSummary)
	if match == nil {
		return "", fmt.Errorf("run brainstorm: could not recover session id from %q", createSummary)
	}
	sessionID := match[1]

	browserSessionID, err := a.resolveBrowserSessionID(sessionID)
	if err != nil {
		return "", err
	}

	progress, err := a.surface.AwaitBrainstormComplete(ctx, sessionID, browserSessionID)
	if err != nil {
		return "", fmt.Errorf("run brainstorm: %w", err)
	}
	log.Println(progress)

	return a.surface.EndBrainstorm(sessionID)
}

// resolveBrowserSessionID reads the live session.Store session id that
// create_brainstorm bound sessionID to, since that id lives in persisted
// state rather than in create_brainstorm's own return value.
func (a *App) resolveBrowserSessionID(sessionID string) (string, error) {
	st, err := a.state.GetSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("resolve browser session: %w", err)
	}
	if st == nil || st.BrowserSessionID == "" {
		return "", fmt.Errorf("resolve browser session: no browser session bound to %s", sessionID)
	}
	return st.BrowserSessionID, nil
}
