package plugin

import (
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/mailhook/internal/module"
	plua "github.com/dshills/mailhook/internal/plugin/lua"
	"github.com/dshills/mailhook/internal/session"
)

// Host manages a single plugin's Lua state and turns its declaration into a
// module descriptor. A Host serves one transaction at a time; the registry
// and dispatcher never call into a module concurrently.
type Host struct {
	mu sync.Mutex

	name     string
	manifest *Manifest

	state      *plua.State
	descriptor module.Descriptor
	loaded     bool
}

// NewHost creates a plugin host for the given manifest.
func NewHost(manifest *Manifest) (*Host, error) {
	if manifest == nil {
		return nil, ErrNilManifest
	}
	return &Host{name: manifest.Name, manifest: manifest}, nil
}

// Name returns the plugin name.
func (h *Host) Name() string {
	return h.name
}

// Manifest returns the plugin manifest.
func (h *Host) Manifest() *Manifest {
	return h.manifest
}

// Load creates the Lua state, runs the entry point script and builds the
// descriptor from the global plugin table the script declared.
func (h *Host) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.loaded {
		return ErrAlreadyLoaded
	}

	state := plua.NewState()
	if err := state.DoFile(h.manifest.MainPath()); err != nil {
		state.Close()
		return fmt.Errorf("failed to load plugin %s: %w", h.name, err)
	}

	decl, ok := state.Global("plugin").(*lua.LTable)
	if !ok {
		state.Close()
		return fmt.Errorf("%w: %s", ErrNoDeclaration, h.name)
	}

	desc, err := h.buildDescriptor(state, decl)
	if err != nil {
		state.Close()
		return err
	}

	h.state = state
	h.descriptor = desc
	h.loaded = true
	return nil
}

// Descriptor returns the module descriptor built at Load time.
func (h *Host) Descriptor() (module.Descriptor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return module.Descriptor{}, ErrNotLoaded
	}
	return h.descriptor, nil
}

// Close shuts down the plugin's Lua state.
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.loaded {
		return
	}
	h.state.Close()
	h.loaded = false
}

// buildDescriptor translates the Lua declaration table into a descriptor.
// The declaration's kind is authoritative; a manifest kind must agree.
func (h *Host) buildDescriptor(state *plua.State, decl *lua.LTable) (module.Descriptor, error) {
	kindName := lua.LVAsString(decl.RawGetString("kind"))
	kind, err := module.ParseKind(kindName)
	if err != nil {
		return module.Descriptor{}, fmt.Errorf("plugin %s: %w", h.name, err)
	}
	if h.manifest.Kind != "" && h.manifest.Kind != kindName {
		return module.Descriptor{}, fmt.Errorf("%w: %s declares %s, manifest says %s",
			ErrKindMismatch, h.name, kindName, h.manifest.Kind)
	}

	name := h.name
	if declared := lua.LVAsString(decl.RawGetString("name")); declared != "" {
		name = declared
	}

	desc := module.Descriptor{Kind: kind, Name: name}

	if desc.Init, err = h.initFunc(state, decl); err != nil {
		return module.Descriptor{}, err
	}

	switch kind {
	case module.KindValidation:
		if desc.Checkpoints.Connect, err = h.checkpointFunc(state, decl, "connect"); err != nil {
			return module.Descriptor{}, err
		}
		if desc.Checkpoints.StartTLS, err = h.checkpointFunc(state, decl, "starttls"); err != nil {
			return module.Descriptor{}, err
		}
		if desc.Checkpoints.MailFrom, err = h.checkpointFunc(state, decl, "mailfrom"); err != nil {
			return module.Descriptor{}, err
		}
		if desc.Checkpoints.Data, err = h.checkpointFunc(state, decl, "data"); err != nil {
			return module.Descriptor{}, err
		}
	case module.KindEvent:
		fn, ok := decl.RawGetString("emit").(*lua.LFunction)
		if !ok {
			return module.Descriptor{}, fmt.Errorf("%w: %s needs an emit function", ErrBadEntryPoint, h.name)
		}
		desc.Emit = h.emitFunc(state, fn)
	}

	if err := desc.Validate(); err != nil {
		return module.Descriptor{}, err
	}
	return desc, nil
}

// initFunc wraps the declaration's optional init entry. The argument list is
// passed to Lua as an array table.
func (h *Host) initFunc(state *plua.State, decl *lua.LTable) (module.InitFunc, error) {
	v := decl.RawGetString("init")
	if v == lua.LNil {
		return nil, nil
	}
	fn, ok := v.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s init", ErrBadEntryPoint, h.name)
	}

	return func(args []string) int {
		t := plua.StringsToTable(state.Raw(), args)
		ret, err := state.CallFunction(fn, t)
		return returnCode(ret, err)
	}, nil
}

// checkpointFunc wraps a declaration checkpoint entry, or returns nil when
// the plugin does not implement it.
func (h *Host) checkpointFunc(state *plua.State, decl *lua.LTable, field string) (module.CheckpointFunc, error) {
	v := decl.RawGetString(field)
	if v == lua.LNil {
		return nil, nil
	}
	fn, ok := v.(*lua.LFunction)
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrBadEntryPoint, h.name, field)
	}

	return func(ctx *session.Context) int {
		ud := plua.PushContext(state.Raw(), ctx)
		ret, err := state.CallFunction(fn, ud)
		return returnCode(ret, err)
	}, nil
}

// emitFunc wraps the event declaration's emit entry. The event kind is
// passed to Lua as its string name.
func (h *Host) emitFunc(state *plua.State, fn *lua.LFunction) module.EmitFunc {
	return func(ev module.Event, ctx *session.Context) int {
		ud := plua.PushContext(state.Raw(), ctx)
		ret, err := state.CallFunction(fn, lua.LString(ev.String()), ud)
		return returnCode(ret, err)
	}
}

// returnCode converts a Lua call result to a module return code. Script
// errors count as failure; a missing or non-numeric return counts as pass.
func returnCode(ret lua.LValue, err error) int {
	if err != nil {
		return -1
	}
	if n, ok := ret.(lua.LNumber); ok {
		return int(n)
	}
	return 0
}
