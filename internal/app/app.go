// Package app wires the host together: the terminal backend, the event
// pump, interrupt handling, the embedded Lua runtime, and the event-polling
// mechanism that keeps the host responsive while a script runs.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/luahost/internal/backend"
	"github.com/dshills/luahost/internal/event"
	"github.com/dshills/luahost/internal/eventpoll"
	"github.com/dshills/luahost/internal/interrupts"
	"github.com/dshills/luahost/internal/luart"
)

// Options configures the application.
type Options struct {
	// PollInterval is the event-polling throttle interval. Zero keeps the
	// eventpoll default.
	PollInterval time.Duration

	// LogLevel is the minimum level written to the log.
	LogLevel LogLevel

	// Headless disables the terminal backend (no status line, no input).
	Headless bool

	// QueueSize bounds the executor queue and the event pump. Zero keeps
	// package defaults.
	QueueSize int

	// Logger overrides the default logger when set.
	Logger *Logger
}

// Application is the scriptable host. It owns a Lua runtime whose executor
// goroutine is the interpreter's main thread, and it keeps its own event
// pump drained during script execution via the eventpoll subsystem.
type Application struct {
	logger *Logger
	pump   *event.Pump
	intr   *interrupts.Controller

	state *luart.State
	exec  *luart.Executor

	poller     *eventpoll.Poller
	pollerOnce sync.Once

	backend backend.Backend

	status  atomic.Value // string
	running atomic.Bool
}

// New creates an Application from the given options. In headless mode no
// backend is attached; otherwise call SetBackend before Run.
func New(opts Options) (*Application, error) {
	logger := opts.Logger
	if logger == nil {
		cfg := DefaultLoggerConfig()
		cfg.Level = opts.LogLevel
		logger = NewLogger(cfg)
	}

	app := &Application{
		logger: logger,
		intr:   interrupts.NewController(),
	}
	app.status.Store("")

	var pumpOpts []event.PumpOption
	if opts.QueueSize > 0 {
		pumpOpts = append(pumpOpts, event.WithQueueSize(opts.QueueSize))
	}
	app.pump = event.NewPump(pumpOpts...)

	app.state = luart.NewState()
	app.exec = luart.NewExecutor(app.state.LuaState(), opts.QueueSize)

	app.installHostModule()
	app.subscribe()

	var pollOpts []eventpoll.Option
	if opts.PollInterval > 0 {
		pollOpts = append(pollOpts, eventpoll.WithInterval(opts.PollInterval))
	}
	pollOpts = append(pollOpts, eventpoll.WithSuspender(app.intr))
	app.poller = eventpoll.New(pendingScheduler{exec: app.exec}, app.ProcessEvents, pollOpts...)

	return app, nil
}

// installHostModule exposes the `host` module to scripts. Every bridge
// crossing doubles as an interpreter safe point for pending calls.
func (app *Application) installHostModule() {
	scriptLog := app.logger.WithComponent("script")
	bridge := luart.NewBridge(app.state.LuaState())
	bridge.InstallHostModule(luart.HostAPI{
		Log: func(msg string) {
			scriptLog.Info("%s", msg)
		},
		Status: func(text string) {
			app.pump.Post(event.New(event.TopicStatus, text))
		},
		Emit: func(topic string, payload map[string]any) {
			app.pump.Post(event.New(event.TopicScript, event.ScriptPayload{
				Topic:  topic,
				Fields: payload,
			}))
		},
		Safepoint:   app.exec.Safepoint,
		Interrupted: app.intr.Interrupted,
	})
}

// subscribe registers the host's own event handlers.
func (app *Application) subscribe() {
	app.pump.Subscribe(event.TopicStatus, func(ev event.Event) error {
		if text, ok := ev.Payload.(string); ok {
			app.status.Store(text)
		}
		return nil
	})
	app.pump.Subscribe(event.TopicScript, func(ev event.Event) error {
		if p, ok := ev.Payload.(event.ScriptPayload); ok {
			app.logger.Debug("script event %q: %v", p.Topic, p.Fields)
		}
		return nil
	})
}

// SetBackend attaches the terminal backend. Must be called before Run.
func (app *Application) SetBackend(b backend.Backend) {
	app.backend = b
}

// Logger returns the application's logger.
func (app *Application) Logger() *Logger {
	return app.logger
}

// Status returns the current status line text.
func (app *Application) Status() string {
	s, _ := app.status.Load().(string)
	return s
}

// Stats returns the event pump counters.
func (app *Application) Stats() event.Stats {
	return app.pump.Stats()
}

// Interrupt delivers an operator interrupt, cancelling any in-flight
// script. Safe to call from any goroutine (signal handlers, input loop).
func (app *Application) Interrupt() {
	app.intr.Interrupt()
}

// ProcessEvents performs one unit of host event processing: it drains the
// event pump and refreshes the status line. This is the hook handed to the
// eventpoll subsystem; while a script is running it executes on the Lua
// executor's owner goroutine, interleaved with the script. It must stay
// safe to call repeatedly and from that goroutine.
func (app *Application) ProcessEvents() {
	n := app.pump.ProcessPending()
	if n > 0 {
		app.logger.Debug("processed %d host events", n)
	}
	if app.backend != nil {
		app.backend.SetStatus(app.Status())
		app.backend.Show()
	}
}

// Run executes the script at scriptPath to completion, keeping host event
// processing alive for the duration. Returns ErrInterrupted when stopped
// by the operator.
func (app *Application) Run(scriptPath string) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer app.running.Store(false)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	// The executor goroutine owns the Lua state for the whole run.
	go app.exec.Run(runCtx)

	if app.backend != nil {
		if err := app.backend.Init(); err != nil {
			return fmt.Errorf("backend init: %w", err)
		}
		defer app.backend.Shutdown()
		go app.pollInput()
	}

	// Start the detached throttling goroutine, once for the process life.
	app.pollerOnce.Do(app.poller.Start)

	app.pump.Post(event.New(event.TopicStatus, "running "+filepath.Base(scriptPath)))
	app.ProcessEvents()

	scriptCtx, stop := app.intr.WatchContext(runCtx)
	defer stop()

	app.logger.Info("running script %s", scriptPath)
	err := app.exec.Execute(scriptCtx, func(L *lua.LState) error {
		return app.state.DoFileContext(scriptCtx, scriptPath)
	})

	// Final drain so trailing status/emit events are observed.
	app.ProcessEvents()

	if app.intr.CheckPending() != nil {
		app.logger.Info("script interrupted")
		return ErrInterrupted
	}
	if err != nil {
		return fmt.Errorf("script failed: %w", err)
	}

	app.pump.Post(event.New(event.TopicStatus, "done"))
	app.ProcessEvents()
	app.logger.Info("script completed")
	return nil
}

// pollInput forwards backend events into the pump until the backend shuts
// down. Interrupts bypass the pump: they must act even when nothing is
// draining.
func (app *Application) pollInput() {
	for {
		ev := app.backend.PollEvent()
		switch ev.Type {
		case backend.EventClosed:
			return
		case backend.EventInterrupt:
			app.intr.Interrupt()
		case backend.EventResize:
			app.pump.Post(event.New(event.TopicResize, ev))
		case backend.EventKey:
			app.pump.Post(event.New(event.TopicKey, ev))
		}
	}
}

// Shutdown releases the Lua runtime. The application cannot be reused
// afterwards.
func (app *Application) Shutdown() {
	app.exec.Close()
	if err := app.state.Close(); err != nil {
		app.logger.Error("closing lua state: %v", err)
	}
}
