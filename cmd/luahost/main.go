// Package main is the entry point for the luahost script runner.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/luahost/internal/app"
	"github.com/dshills/luahost/internal/backend"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	opts, scriptPath, ok := parseFlags()
	if !ok {
		return 2
	}

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer application.Shutdown()

	if !opts.Headless {
		term, err := backend.NewTerminal()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
			return 1
		}
		application.SetBackend(term)
	}

	// Ctrl-C arrives either as a terminal key event or, in headless mode,
	// as a signal. Route both through the interrupt controller.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		for range signals {
			application.Interrupt()
		}
	}()

	if err := application.Run(scriptPath); err != nil {
		if errors.Is(err, app.ErrInterrupted) {
			fmt.Fprintln(os.Stderr, "Interrupted")
			return 130
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	return 0
}

func parseFlags() (app.Options, string, bool) {
	var opts app.Options
	var interval time.Duration
	var logLevel string
	var showVersion bool

	flag.DurationVar(&interval, "poll-interval", 0, "Event polling throttle interval (default 250ms)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&opts.Headless, "headless", false, "Run without a terminal UI")
	flag.IntVar(&opts.QueueSize, "queue-size", 0, "Event and executor queue size")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Usage = usage
	flag.Parse()

	if showVersion {
		fmt.Printf("luahost %s (%s)\n", version, commit)
		return opts, "", false
	}

	if flag.NArg() != 1 {
		usage()
		return opts, "", false
	}

	opts.PollInterval = interval
	opts.LogLevel = app.ParseLogLevel(logLevel)

	return opts, flag.Arg(0), true
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] script.lua\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()
}
