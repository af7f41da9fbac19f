// Package luart embeds the gopher-lua interpreter for host scripting.
//
// gopher-lua's LState is not goroutine-safe: every operation on a state
// must happen on one goroutine. The package therefore splits responsibility
// three ways:
//
//   - State wraps an LState with a sandbox (safe stdlib subset, allowlisted
//     require) and panic-recovering execution helpers.
//   - Executor owns the goroutine that all Lua work runs on, serializing
//     operations submitted from anywhere in the host. That goroutine is the
//     interpreter's "main thread".
//   - Bridge converts values across the Go/Lua boundary and installs the
//     `host` module scripts use to talk back to the host.
//
// The Executor also carries the host's pending-call facility:
// AddPendingCall queues a function, from any goroutine, to run on the owner
// goroutine at the next safe point. Safe points are the gaps between queued
// operations, a short idle tick, and every `host` module call a script
// makes (each bridge crossing invokes Safepoint). A script that computes
// pure Lua without touching the host module delays pending calls until it
// finishes; there is no between-bytecode hook in gopher-lua to do better.
package luart
