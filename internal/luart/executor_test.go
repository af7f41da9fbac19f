package luart

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	lua "github.com/yuin/gopher-lua"
)

func TestNewExecutor(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	if exec == nil {
		t.Fatal("NewExecutor returned nil")
	}
	if exec.IsClosed() {
		t.Error("new executor should not be closed")
	}
	if cap(exec.queue) != 10 {
		t.Errorf("queue capacity = %d, want 10", cap(exec.queue))
	}
}

func TestNewExecutorDefaultQueueSize(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 0)
	if cap(exec.queue) != 100 {
		t.Errorf("default queue capacity = %d, want 100", cap(exec.queue))
	}
}

func TestExecutorExecute(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go exec.Run(ctx)
	defer exec.Close()

	var executed bool
	err := exec.Execute(ctx, func(L *lua.LState) error {
		executed = true
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !executed {
		t.Error("operation was not executed")
	}
}

func TestExecutorExecuteRecoverPanic(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go exec.Run(ctx)
	defer exec.Close()

	err := exec.Execute(ctx, func(L *lua.LState) error {
		panic("script blew up")
	})
	if err == nil {
		t.Fatal("expected error from panicking operation")
	}
	if err.Error() != "script blew up" {
		t.Errorf("error = %q, want panic message", err)
	}

	// The worker survives the panic.
	err = exec.Execute(ctx, func(L *lua.LState) error { return nil })
	if err != nil {
		t.Errorf("executor did not survive a panicking call: %v", err)
	}
}

func TestExecutorClosedExecute(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	exec.Close()

	err := exec.Execute(context.Background(), func(L *lua.LState) error { return nil })
	if err != ErrExecutorClosed {
		t.Errorf("Execute on closed executor = %v, want ErrExecutorClosed", err)
	}
	if err := exec.ExecuteAsync(func(L *lua.LState) error { return nil }); err != ErrExecutorClosed {
		t.Errorf("ExecuteAsync on closed executor = %v, want ErrExecutorClosed", err)
	}
}

func TestExecutorAddPendingCallIdleDelivery(t *testing.T) {
	// Pending calls added while the executor sits idle are delivered by the
	// idle tick, without any queued operation to piggyback on.
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go exec.Run(ctx)
	defer exec.Close()

	var ran atomic.Bool
	if err := exec.AddPendingCall(func(L *lua.LState) { ran.Store(true) }); err != nil {
		t.Fatalf("AddPendingCall returned error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !ran.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !ran.Load() {
		t.Error("pending call was never delivered on an idle executor")
	}
}

func TestExecutorPendingCallRunsAtSafepoint(t *testing.T) {
	// A pending call added while a queued operation runs is delivered when
	// that operation reaches a safe point.
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go exec.Run(ctx)
	defer exec.Close()

	var delivered atomic.Bool
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		<-started
		_ = exec.AddPendingCall(func(L *lua.LState) { delivered.Store(true) })
		close(release)
	}()

	err := exec.Execute(ctx, func(L *lua.LState) error {
		close(started)
		<-release
		if delivered.Load() {
			return nil // must not have run before the safe point
		}
		exec.Safepoint()
		return nil
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if !delivered.Load() {
		t.Error("pending call did not run at the mid-operation safe point")
	}
}

func TestExecutorPendingCallPanicContained(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go exec.Run(ctx)
	defer exec.Close()

	var after atomic.Bool
	_ = exec.AddPendingCall(func(L *lua.LState) { panic("pending call failed") })
	_ = exec.AddPendingCall(func(L *lua.LState) { after.Store(true) })

	deadline := time.Now().Add(2 * time.Second)
	for !after.Load() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !after.Load() {
		t.Error("a panicking pending call stopped later pending calls from running")
	}

	// The worker goroutine is still alive.
	if err := exec.Execute(ctx, func(L *lua.LState) error { return nil }); err != nil {
		t.Errorf("executor did not survive a panicking pending call: %v", err)
	}
}

func TestExecutorAddPendingCallAfterClose(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	exec.Close()

	if err := exec.AddPendingCall(func(L *lua.LState) {}); err != ErrExecutorClosed {
		t.Errorf("AddPendingCall on closed executor = %v, want ErrExecutorClosed", err)
	}
}

func TestExecutorSafepointOrderPreserved(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)

	var order []int
	_ = exec.AddPendingCall(func(L *lua.LState) { order = append(order, 1) })
	_ = exec.AddPendingCall(func(L *lua.LState) { order = append(order, 2) })
	_ = exec.AddPendingCall(func(L *lua.LState) { order = append(order, 3) })

	exec.Safepoint()

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("pending calls ran out of order: %v", order)
	}

	// Queue is drained; a second safepoint is a no-op.
	exec.Safepoint()
	if len(order) != 3 {
		t.Errorf("second safepoint re-ran pending calls: %v", order)
	}
}

func TestExecutorCloseIdempotent(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	exec := NewExecutor(L, 10)
	exec.Close()
	exec.Close()

	if !exec.IsClosed() {
		t.Error("executor should report closed")
	}
}
