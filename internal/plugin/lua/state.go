package lua

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// DefaultCallStackSize bounds the Lua call stack per plugin.
const DefaultCallStackSize = 120

// State wraps a sandboxed gopher-lua state owned by a single plugin.
type State struct {
	mu     sync.Mutex
	l      *lua.LState
	closed bool
}

// StateOption configures a State.
type StateOption func(*lua.Options)

// WithCallStackSize sets the maximum Lua call stack depth.
func WithCallStackSize(n int) StateOption {
	return func(o *lua.Options) {
		o.CallStackSize = n
	}
}

// NewState creates a sandboxed Lua state with only the safe standard
// libraries open.
func NewState(opts ...StateOption) *State {
	options := lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: DefaultCallStackSize,
	}
	for _, opt := range opts {
		opt(&options)
	}

	l := lua.NewState(options)
	openSafeLibraries(l)
	sandbox(l)
	registerContextType(l)

	return &State{l: l}
}

// openSafeLibraries opens the subset of the Lua stdlib scripts may use.
// io, os, debug and the loader surface stay closed.
func openSafeLibraries(l *lua.LState) {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		l.Push(l.NewFunction(lib.open))
		l.Push(lua.LString(lib.name))
		l.Call(1, 0)
	}
}

// DoFile loads and runs a plugin script.
func (s *State) DoFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.recovering(func() error { return s.l.DoFile(path) })
}

// DoString runs Lua source. Used by tests and the verifier.
func (s *State) DoString(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}
	return s.recovering(func() error { return s.l.DoString(code) })
}

// Global returns a global value from the script's environment.
func (s *State) Global(name string) lua.LValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lua.LNil
	}
	return s.l.GetGlobal(name)
}

// CallFunction invokes fn with args and returns its first result. A script
// error or panic is returned, never propagated.
func (s *State) CallFunction(fn lua.LValue, args ...lua.LValue) (lua.LValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return lua.LNil, ErrStateClosed
	}
	f, ok := fn.(*lua.LFunction)
	if !ok {
		return lua.LNil, ErrNotAFunction
	}

	var ret lua.LValue = lua.LNil
	err := s.recovering(func() error {
		top := s.l.GetTop()
		s.l.Push(f)
		for _, arg := range args {
			s.l.Push(arg)
		}
		if err := s.l.PCall(len(args), lua.MultRet, nil); err != nil {
			return err
		}
		if s.l.GetTop() > top {
			ret = s.l.Get(top + 1)
			s.l.SetTop(top)
		}
		return nil
	})
	return ret, err
}

// Raw exposes the underlying LState for bridge construction. Callers must
// hold no assumptions beyond the current call.
func (s *State) Raw() *lua.LState {
	return s.l
}

// Close shuts the state down. Further calls fail with ErrStateClosed.
func (s *State) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.l.Close()
}

func (s *State) recovering(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

// sandbox strips the code-loading surface and the filesystem-facing module
// loader from the script environment.
func sandbox(l *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		l.SetGlobal(name, lua.LNil)
	}

	if pkg, ok := l.GetGlobal("package").(*lua.LTable); ok {
		l.SetField(pkg, "path", lua.LString(""))
		l.SetField(pkg, "cpath", lua.LString(""))
	}
}
