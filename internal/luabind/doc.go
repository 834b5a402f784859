// Package luabind exposes a hub to Lua scripts through gopher-lua.
//
// A Runtime installs a global "hub" table:
//
//	local h = hub.subscribe("/editor/*", function(file, segments)
//	    print(segments[2], file)
//	end)
//	hub.publish("/editor/save", "main.go")
//	hub.unsubscribe(h)
//
// Callbacks receive the published values followed by a table of channel
// segments. hub.unsubscribe also accepts a pattern and the function that was
// subscribed, and hub.match returns the pattern keys a channel would fire.
//
// Deliveries run on the goroutine driving the script, after the chunk that
// published them returns. An error raised by a callback is logged and
// recorded in Errors; it does not stop other callbacks.
package luabind
