// Package plugin discovers, loads and hosts Lua mail modules.
//
// A plugin is a directory containing a plugin.json manifest and a Lua entry
// point, or a bare name.lua file. The entry point script declares a global
// table named "plugin" with the module's kind, entry points and optional
// init function:
//
//	plugin = {
//	    name = "rspamd-check",
//	    kind = "validation",
//	    init = function(args) return 0 end,
//	    connect = function(ctx) return 0 end,
//	    data = function(ctx) return 0 end,
//	}
//
// Event plugins declare kind = "event" and an emit function instead of
// checkpoint entries. The Host turns the declaration into a
// module.Descriptor whose callbacks run inside the plugin's sandboxed Lua
// state; registration order and init discipline are the registry's concern.
package plugin
