package luart

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// State wraps gopher-lua with sandboxing and panic-recovering execution.
//
// The LState is not goroutine-safe. The mutex here guards against stray
// concurrent access from Go code, but the intended usage is that all calls
// after construction happen on the Executor's owner goroutine.
type State struct {
	L *lua.LState

	mu sync.Mutex

	sandbox *Sandbox
	closed  bool
}

// StateOption configures a State.
type StateOption func(*lua.Options)

// WithRegistrySize sets the initial Lua registry size.
func WithRegistrySize(n int) StateOption {
	return func(o *lua.Options) {
		o.RegistrySize = n
	}
}

// NewState creates a sandboxed Lua state with only the safe standard
// libraries opened.
func NewState(opts ...StateOption) *State {
	luaOpts := lua.Options{
		SkipOpenLibs: true, // opened selectively below
	}
	for _, opt := range opts {
		opt(&luaOpts)
	}

	L := lua.NewState(luaOpts)
	openSafeLibraries(L)

	s := &State{L: L}
	s.sandbox = NewSandbox(L)
	s.sandbox.Install()
	return s
}

// openSafeLibraries opens the Lua standard libraries that carry no
// filesystem, process, or introspection surface.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	// Package gives us require and the preload table the host module is
	// registered in; the sandbox strips its disk loaders.
	lua.OpenPackage(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	// Intentionally not opened: io, os, debug.
}

// DoString executes Lua source synchronously.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

// DoStringContext executes Lua source under ctx. gopher-lua checks the
// context inside its VM loop, so even a busy loop in the script is stopped
// when ctx is cancelled.
func (s *State) DoStringContext(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	return s.doWithRecovery(func() error {
		return s.L.DoString(code)
	})
}

// DoFileContext executes a Lua file under ctx.
func (s *State) DoFileContext(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	return s.doWithRecovery(func() error {
		return s.L.DoFile(path)
	})
}

// doWithRecovery executes fn, converting a panic in the VM or in bridged Go
// code into an error.
func (s *State) doWithRecovery(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// Call calls a global Lua function with the given arguments and returns its
// results. Returns an empty slice (not nil) when the function returns
// nothing.
func (s *State) Call(fn string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStateClosed
	}

	fnVal := s.L.GetGlobal(fn)
	if fnVal == lua.LNil {
		return nil, fmt.Errorf("function %q not found", fn)
	}
	if fnVal.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%q is not a function (got %s)", fn, fnVal.Type())
	}

	stackTop := s.L.GetTop()

	s.L.Push(fnVal)
	for _, arg := range args {
		s.L.Push(arg)
	}

	var callErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				callErr = fmt.Errorf("lua panic: %v", r)
			}
		}()
		callErr = s.L.PCall(len(args), lua.MultRet, nil)
	}()
	if callErr != nil {
		return nil, callErr
	}

	nRet := s.L.GetTop() - stackTop
	if nRet <= 0 {
		return []lua.LValue{}, nil
	}
	results := make([]lua.LValue, nRet)
	for i := 0; i < nRet; i++ {
		results[i] = s.L.Get(stackTop + i + 1)
	}
	s.L.Pop(nRet)

	return results, nil
}

// SetGlobal sets a global variable.
func (s *State) SetGlobal(name string, value lua.LValue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.L.SetGlobal(name, value)
}

// GetGlobal returns a global variable value.
func (s *State) GetGlobal(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return lua.LNil
	}
	return s.L.GetGlobal(name)
}

// LuaState returns the underlying gopher-lua state.
//
// WARNING: direct access bypasses the mutex and the sandbox. Callers must
// only touch it from the executor's owner goroutine.
func (s *State) LuaState() *lua.LState {
	return s.L
}

// Sandbox returns the state's sandbox.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed reports whether the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the Lua state. Subsequent operations return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
