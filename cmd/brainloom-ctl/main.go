// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// brainloom-ctl is a read-only inspector for a brainstorm coordination
// service's persisted state: it lists sessions and prints their branch,
// question, answer, and finding history directly from the state
// directory, without needing a live process to talk to.
package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/wingedpig/brainloom/internal/branchstate"
	"github.com/wingedpig/brainloom/internal/config"
)

var version = "0.1"

func main() {
	var (
		stateDir string
		args     []string
	)
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-dir=") {
			stateDir = strings.TrimPrefix(arg, "-dir=")
			continue
		}
		args = append(args, arg)
	}
	if env := os.Getenv("BRAINLOOM_STATE"); env != "" && stateDir == "" {
		stateDir = env
	}
	if stateDir == "" {
		stateDir = config.Default().State.Dir
	}

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "list":
		err = cmdList(stateDir)
	case "show":
		err = cmdShow(stateDir, rest)
	case "version", "-v", "--version":
		fmt.Printf("brainloom-ctl %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`brainloom-ctl - Inspect persisted brainstorm sessions

Usage:
  brainloom-ctl [-dir=<state-dir>] <command> [arguments]

Environment:
  BRAINLOOM_STATE    State directory (default: ~/.brainloom/state)

Commands:
  list            List persisted session ids
  show <id>       Print a session's branches, questions, answers, and findings
  version         Show version`)
}

func openStore(stateDir string) (*branchstate.Store, error) {
	return branchstate.NewStore(stateDir, false)
}

func cmdList(stateDir string) error {
	store, err := openStore(stateDir)
	if err != nil {
		return fmt.Errorf("open state dir: %w", err)
	}
	defer store.Close()

	ids, err := store.List()
	if err != nil {
		return err
	}
	sort.Strings(ids)
	for _, id := range ids {
		st, err := store.GetSession(id)
		if err != nil || st == nil {
			fmt.Println(id)
			continue
		}
		fmt.Printf("%s  %s\n", id, truncate(st.Request, 60))
	}
	return nil
}

func cmdShow(stateDir string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: brainloom-ctl show <session-id>")
	}
	store, err := openStore(stateDir)
	if err != nil {
		return fmt.Errorf("open state dir: %w", err)
	}
	defer store.Close()

	st, err := store.GetSession(args[0])
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("session %s not found", args[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Brainstorm %s: %s\n", st.SessionID, st.Request)
	if st.BrowserSessionID != "" {
		fmt.Fprintf(&b, "Browser session: %s\n", st.BrowserSessionID)
	}
	for _, id := range st.BranchOrder {
		br := st.Branches[id]
		fmt.Fprintf(&b, "\n[%s] %s (%s)\n", id, br.Scope, br.Status)
		if len(br.Questions) == 0 {
			b.WriteString("  (no questions)\n")
		}
		for _, q := range br.Questions {
			if q.Answer == nil {
				fmt.Fprintf(&b, "  Q: %s (unanswered)\n", q.Text)
				continue
			}
			fmt.Fprintf(&b, "  Q: %s\n  A: %v\n", q.Text, q.Answer)
		}
		if br.Status == branchstate.BranchDone {
			fmt.Fprintf(&b, "  Finding: %s\n", br.Finding)
		}
	}
	fmt.Print(b.String())
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
