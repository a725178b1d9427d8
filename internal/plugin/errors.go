package plugin

import "errors"

// Plugin lifecycle errors.
var (
	ErrNilManifest    = errors.New("plugin: manifest is nil")
	ErrNoEntryPoint   = errors.New("plugin: no entry point found")
	ErrPluginNotFound = errors.New("plugin: not found")
	ErrAlreadyLoaded  = errors.New("plugin: already loaded")
	ErrNotLoaded      = errors.New("plugin: not loaded")
	ErrNoDeclaration  = errors.New("plugin: script did not declare a plugin table")
	ErrKindMismatch   = errors.New("plugin: manifest kind disagrees with declaration")
	ErrBadEntryPoint  = errors.New("plugin: declaration entry is not a function")
)
