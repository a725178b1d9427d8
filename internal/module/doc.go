// Package module defines the declaration protocol a loaded module satisfies
// and the process-wide registry the dispatcher consumes.
//
// A module registers exactly one Descriptor, tagged as either a validation
// module (named checkpoint entry points, all optional) or an event module (a
// single emission entry point invoked for every lifecycle event kind). Entry
// points follow the boundary return convention: 0 means pass/continue, any
// nonzero value means reject.
//
// The registry is populated once at load time, initialized exactly once per
// process lifetime, and consumed read-only by the dispatcher afterwards.
// Iteration order is registration order.
package module
