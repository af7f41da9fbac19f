package luart

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"
)

// sleepSlice is the longest uninterrupted stretch host.sleep will block
// for; between slices the bridge reaches a safe point so pending calls
// keep flowing while a script sleeps.
const sleepSlice = 10 * time.Millisecond

// HostAPI is the set of host callbacks exposed to scripts through the
// `host` Lua module. Nil fields degrade to no-ops.
type HostAPI struct {
	// Log writes a message to the host log.
	Log func(msg string)

	// Status updates the host's status line.
	Status func(text string)

	// Emit publishes a script event to the host with an optional payload.
	Emit func(topic string, payload map[string]any)

	// Safepoint gives the interpreter's owner goroutine a chance to run
	// pending calls. Invoked on every bridge crossing.
	Safepoint func()

	// Interrupted reports whether an operator interrupt is pending, letting
	// cooperative scripts bail out early.
	Interrupted func() bool
}

func (api HostAPI) safepoint() {
	if api.Safepoint != nil {
		api.Safepoint()
	}
}

// Bridge converts values across the Go/Lua boundary and installs the host
// module.
type Bridge struct {
	L *lua.LState
}

// NewBridge creates a Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	return &Bridge{L: L}
}

// InstallHostModule preloads the `host` module so sandboxed scripts can
// require it. Every exported function is an interpreter safe point.
func (b *Bridge) InstallHostModule(api HostAPI) {
	b.L.PreloadModule("host", func(L *lua.LState) int {
		mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"log": func(L *lua.LState) int {
				api.safepoint()
				msg := L.CheckString(1)
				if api.Log != nil {
					api.Log(msg)
				}
				return 0
			},
			"status": func(L *lua.LState) int {
				api.safepoint()
				text := L.CheckString(1)
				if api.Status != nil {
					api.Status(text)
				}
				return 0
			},
			"emit": func(L *lua.LState) int {
				api.safepoint()
				topic := L.CheckString(1)
				var payload map[string]any
				if L.GetTop() >= 2 {
					if tbl, ok := L.Get(2).(*lua.LTable); ok {
						if m, ok := b.ToGoValue(tbl).(map[string]any); ok {
							payload = m
						}
					}
				}
				if api.Emit != nil {
					api.Emit(topic, payload)
				}
				return 0
			},
			"sleep": func(L *lua.LState) int {
				ms := L.CheckNumber(1)
				remaining := time.Duration(float64(ms)) * time.Millisecond
				for remaining > 0 {
					api.safepoint()
					if api.Interrupted != nil && api.Interrupted() {
						break
					}
					slice := sleepSlice
					if remaining < slice {
						slice = remaining
					}
					time.Sleep(slice)
					remaining -= slice
				}
				api.safepoint()
				return 0
			},
			"interrupted": func(L *lua.LState) int {
				api.safepoint()
				pending := false
				if api.Interrupted != nil {
					pending = api.Interrupted()
				}
				L.Push(lua.LBool(pending))
				return 1
			},
		})

		jsonMod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
			"get": func(L *lua.LState) int {
				api.safepoint()
				doc := L.CheckString(1)
				path := L.CheckString(2)
				result := gjson.Get(doc, path)
				if !result.Exists() {
					L.Push(lua.LNil)
					return 1
				}
				L.Push(b.ToLuaValue(result.Value()))
				return 1
			},
			"set": func(L *lua.LState) int {
				api.safepoint()
				doc := L.CheckString(1)
				path := L.CheckString(2)
				value := b.ToGoValue(L.Get(3))
				out, err := sjson.Set(doc, path, value)
				if err != nil {
					L.Push(lua.LNil)
					L.Push(lua.LString(err.Error()))
					return 2
				}
				L.Push(lua.LString(out))
				return 1
			},
		})
		L.SetField(mod, "json", jsonMod)

		L.Push(mod)
		return 1
	})
}

// ToGoValue converts a Lua value to a Go value. Tables become []any when
// they are contiguous 1-based arrays and map[string]any otherwise;
// functions and userdata convert to nil.
func (b *Bridge) ToGoValue(lv lua.LValue) any {
	return b.toGoValue(lv, make(map[*lua.LTable]bool))
}

func (b *Bridge) toGoValue(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil // break circular references
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	default:
		return nil
	}
}

func (b *Bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	n := t.Len()
	if n > 0 {
		// Contiguous array part only.
		count := 0
		isArray := true
		t.ForEach(func(k, _ lua.LValue) {
			count++
			kn, ok := k.(lua.LNumber)
			if !ok || float64(kn) != float64(int(kn)) || int(kn) < 1 || int(kn) > n {
				isArray = false
			}
		})
		if isArray && count == n {
			arr := make([]any, n)
			for i := 1; i <= n; i++ {
				arr[i-1] = b.toGoValue(t.RawGetInt(i), visited)
			}
			return arr
		}
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = b.toGoValue(v, visited)
	})
	return m
}

// ToLuaValue converts a Go value to a Lua value.
func (b *Bridge) ToLuaValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		tbl := b.L.NewTable()
		for i, item := range val {
			tbl.RawSetInt(i+1, b.ToLuaValue(item))
		}
		return tbl
	case map[string]any:
		tbl := b.L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, b.ToLuaValue(item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}
