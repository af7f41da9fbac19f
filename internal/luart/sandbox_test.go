package luart

import (
	"strings"
	"testing"
)

func TestSandboxRemovesCodeLoading(t *testing.T) {
	s := NewState()
	defer s.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		code := `return type(` + name + `)`
		if err := s.DoString(`result = type(` + name + `)`); err != nil {
			t.Fatalf("%s: %v", code, err)
		}
		if got := s.GetGlobal("result").String(); got != "nil" {
			t.Errorf("type(%s) = %s, want nil", name, got)
		}
	}
}

func TestSandboxRequireSafeModules(t *testing.T) {
	s := NewState()
	defer s.Close()

	for _, mod := range []string{"string", "table", "math"} {
		if err := s.DoString(`local m = require("` + mod + `")`); err != nil {
			t.Errorf("require(%q) failed: %v", mod, err)
		}
	}
}

func TestSandboxRequireRejectsUnknown(t *testing.T) {
	s := NewState()
	defer s.Close()

	tests := []string{"io", "os", "debug", "socket", "../../etc/passwd"}
	for _, mod := range tests {
		err := s.DoString(`require("` + mod + `")`)
		if err == nil {
			t.Errorf("require(%q) should have been rejected", mod)
			continue
		}
		if !strings.Contains(err.Error(), "not available") {
			t.Errorf("require(%q) error = %v, want 'not available'", mod, err)
		}
	}
}

func TestSandboxAllowsHostNamespace(t *testing.T) {
	s := NewState()
	defer s.Close()

	sb := s.Sandbox()
	if !sb.allowed("host") {
		t.Error("host module should be allowed")
	}
	if !sb.allowed("host.json") {
		t.Error("host.* modules should be allowed")
	}
	if sb.allowed("hostile") {
		t.Error("modules merely prefixed with 'host' should not be allowed")
	}
}

func TestSandboxClearsPackagePaths(t *testing.T) {
	s := NewState()
	defer s.Close()

	if err := s.DoString(`p = package.path; cp = package.cpath`); err != nil {
		t.Fatalf("reading package paths failed: %v", err)
	}
	if got := s.GetGlobal("p").String(); got != "" {
		t.Errorf("package.path = %q, want empty", got)
	}
	if got := s.GetGlobal("cp").String(); got != "" {
		t.Errorf("package.cpath = %q, want empty", got)
	}
}
