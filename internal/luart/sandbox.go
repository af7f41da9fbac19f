package luart

import (
	lua "github.com/yuin/gopher-lua"
)

// Sandbox restricts a Lua state to safe operations: no code loading from
// disk, no arbitrary module loading, require limited to an allowlist.
type Sandbox struct {
	L *lua.LState
}

// NewSandbox creates a sandbox for the given state.
func NewSandbox(L *lua.LState) *Sandbox {
	return &Sandbox{L: L}
}

// safeModules are built-in gopher-lua modules scripts may require.
var safeModules = map[string]bool{
	"string": true,
	"table":  true,
	"math":   true,
	"bit32":  true,
	"utf8":   true,
}

// Install applies the sandbox restrictions.
func (s *Sandbox) Install() {
	// Code-loading primitives could be used to escape the sandbox.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafeRequire()
}

// installSafeRequire replaces require with an allowlist-based version.
//
// package.path and package.cpath are cleared so nothing can be loaded from
// disk. Only the safe built-in modules and modules preloaded by the host
// (via L.PreloadModule, the `host` namespace) resolve.
func (s *Sandbox) installSafeRequire() {
	pkg := s.L.GetGlobal("package")
	if pkgTable, ok := pkg.(*lua.LTable); ok {
		s.L.SetField(pkgTable, "path", lua.LString(""))
		s.L.SetField(pkgTable, "cpath", lua.LString(""))

		// Drop anything pre-seeded in package.loaded that is not safe.
		keepLoaded := map[string]bool{
			"_G": true, "string": true, "table": true, "math": true,
			"bit32": true, "utf8": true, "package": true,
		}
		if loadedTbl, ok := s.L.GetField(pkgTable, "loaded").(*lua.LTable); ok {
			var remove []string
			loadedTbl.ForEach(func(k, _ lua.LValue) {
				if ks, ok := k.(lua.LString); ok && !keepLoaded[string(ks)] {
					remove = append(remove, string(ks))
				}
			})
			for _, key := range remove {
				loadedTbl.RawSetString(key, lua.LNil)
			}
		}
	}

	originalRequire := s.L.GetGlobal("require")

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		modName := L.CheckString(1)

		if s.allowed(modName) {
			L.Push(originalRequire)
			L.Push(lua.LString(modName))
			L.Call(1, 1)
			return 1
		}

		// L.RaiseError does a longjmp; the return is unreachable.
		L.RaiseError("module %q is not available", modName)
		return 0
	}))
}

// allowed reports whether require may resolve modName.
func (s *Sandbox) allowed(modName string) bool {
	if safeModules[modName] {
		return true
	}
	// The host module and its submodules are provided via PreloadModule.
	if modName == "host" {
		return true
	}
	if len(modName) > 5 && modName[:5] == "host." {
		return true
	}
	return false
}
