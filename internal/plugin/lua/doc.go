// Package lua wraps the gopher-lua runtime that hosts foreign modules.
//
// Each plugin owns one sandboxed State. The sandbox opens only the safe
// standard libraries and strips the code-loading entry points, so a script
// can compute over the transaction Context but cannot reach the filesystem
// or load further code.
//
// The bridge exposes the Context to scripts as a userdata with accessor
// methods mirroring the host boundary. Owned boundary values never escape
// into Lua: every binding copies the value out and releases it on every exit
// path, so a script cannot leak or double-release.
//
// gopher-lua's LState is not goroutine-safe. The dispatch discipline already
// serializes all calls for one transaction; the State's mutex additionally
// guards against concurrent host-side use of the same plugin.
package lua
