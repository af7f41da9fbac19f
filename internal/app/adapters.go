package app

import (
	"github.com/dshills/luahost/internal/luart"
	lua "github.com/yuin/gopher-lua"
)

// pendingScheduler adapts the Lua executor's pending-call facility to the
// eventpoll Scheduler port. It is the injection primitive: callable from
// any goroutine, no interpreter lock, the callback runs later on the
// executor's owner goroutine at a safe point.
type pendingScheduler struct {
	exec *luart.Executor
}

func (s pendingScheduler) Schedule(fn func()) error {
	return s.exec.AddPendingCall(func(*lua.LState) { fn() })
}
