package module

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry errors.
var (
	ErrAlreadyInitialized = errors.New("module: registry already initialized")
	ErrNotInitialized     = errors.New("module: registry not initialized")
	ErrDuplicateName      = errors.New("module: duplicate module name")
)

// Entry pairs a registered descriptor with its configured init arguments.
type Entry struct {
	Descriptor Descriptor
	Args       []string

	// active is false until Init succeeds, and stays false for modules whose
	// init failed; inactive modules are excluded from dispatch.
	active bool
}

// Registry holds the loaded modules in registration order.
//
// Registration and initialization happen once, at process startup, before
// transaction processing begins; both are serialized by the mutex. Dispatch
// reads afterwards are lock-free snapshots of an immutable slice.
type Registry struct {
	mu          sync.Mutex
	entries     []*Entry
	initialized bool
	log         *logrus.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the diagnostics logger.
func WithLogger(log *logrus.Logger) RegistryOption {
	return func(r *Registry) {
		r.log = log
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		log: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a module declaration. Modules dispatch in registration
// order. Registering after Init is rejected: the registry is read-only once
// dispatch may be running.
func (r *Registry) Register(desc Descriptor, args ...string) error {
	if err := desc.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return fmt.Errorf("%w: cannot register %q", ErrAlreadyInitialized, desc.Name)
	}
	for _, e := range r.entries {
		if e.Descriptor.Name == desc.Name {
			return fmt.Errorf("%w: %q", ErrDuplicateName, desc.Name)
		}
	}

	r.entries = append(r.entries, &Entry{
		Descriptor: desc,
		Args:       append([]string(nil), args...),
	})
	return nil
}

// Init calls every module's initialization entry point exactly once, in
// registration order, passing that module's configured arguments verbatim.
//
// A nonzero init return (or an init panic) excludes that module from all
// subsequent dispatch; the remaining modules keep loading. Init itself fails
// only when called twice.
func (r *Registry) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		return ErrAlreadyInitialized
	}
	r.initialized = true

	for _, e := range r.entries {
		rc := r.runInit(e)
		if rc != 0 {
			r.log.WithFields(logrus.Fields{
				"module": e.Descriptor.Name,
				"kind":   e.Descriptor.Kind.String(),
				"code":   rc,
			}).Warn("module init failed, excluding from dispatch")
			continue
		}
		e.active = true
		r.log.WithFields(logrus.Fields{
			"module": e.Descriptor.Name,
			"kind":   e.Descriptor.Kind.String(),
			"args":   e.Args,
		}).Debug("module initialized")
	}

	return nil
}

// runInit invokes one module's init with panic isolation. A panicking init is
// treated as a failed load, not a process fault.
func (r *Registry) runInit(e *Entry) (rc int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithFields(logrus.Fields{
				"module": e.Descriptor.Name,
				"panic":  rec,
			}).Error("module init panicked")
			rc = -1
		}
	}()

	if e.Descriptor.Init == nil {
		return 0
	}
	return e.Descriptor.Init(e.Args)
}

// Initialized reports whether Init has run.
func (r *Registry) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Validators returns the active validation modules in registration order.
func (r *Registry) Validators() []Descriptor {
	return r.active(KindValidation)
}

// Listeners returns the active event modules in registration order.
func (r *Registry) Listeners() []Descriptor {
	return r.active(KindEvent)
}

// Names returns every registered module name in registration order, active or
// not.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.Descriptor.Name
	}
	return names
}

// Len returns the number of registered modules.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) active(kind Kind) []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		if e.active && e.Descriptor.Kind == kind {
			out = append(out, e.Descriptor)
		}
	}
	return out
}
