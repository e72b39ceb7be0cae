// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// brainloom is a standalone demo runner: it drives one full brainstorm
// cycle — create_brainstorm, await_brainstorm_complete, end_brainstorm —
// against a set of branches read from a JSON file, without requiring an
// embedding agent process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wingedpig/brainloom/internal/app"
)

var version = "0.1"

func main() {
	var (
		configPath  string
		host        string
		port        int
		branches    string
		request     string
		skipBrowser bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: built-in defaults)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "Session server host (overrides config)")
	flag.IntVar(&port, "port", 0, "Session server port (overrides config)")
	flag.StringVar(&branches, "branches", "", "Path to a JSON file describing the branches to explore")
	flag.StringVar(&request, "request", "", "The brainstorm request text")
	flag.BoolVar(&skipBrowser, "skip-browser", false, "Do not launch a browser; print the session URL instead")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("brainloom %s\n", version)
		os.Exit(0)
	}

	if branches == "" || request == "" {
		fmt.Fprintln(os.Stderr, "Usage: brainloom -request \"...\" -branches branches.json [-config brainloom.hjson]")
		os.Exit(1)
	}

	application, err := app.New(app.Options{
		ConfigPath:  configPath,
		Host:        host,
		Port:        port,
		SkipBrowser: skipBrowser,
		Version:     version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	defer application.Close()

	specs, err := app.LoadBranches(branches)
	if err != nil {
		log.Fatalf("Failed to load branches: %v", err)
	}

	summary, err := application.RunBrainstorm(context.Background(), request, specs)
	if err != nil {
		log.Fatalf("Brainstorm error: %v", err)
	}
	fmt.Println(summary)
}
