package luabind

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/topichub/internal/hub"
)

const handleTypeName = "topichub.handle"

// luaHandler delivers to a Lua function. It is a comparable value, so
// unsubscribing with the same function value finds the registration.
type luaHandler struct {
	r  *Runtime
	fn *lua.LFunction
}

// Handle calls the Lua function with the published values followed by a
// table of channel segments. Errors are logged and recorded.
func (h luaHandler) Handle(d hub.Delivery) {
	L := h.r.L

	L.Push(h.fn)
	for _, v := range d.Data {
		L.Push(toLua(L, v))
	}
	L.Push(toLua(L, d.Segments))

	if err := L.PCall(len(d.Data)+1, 0, nil); err != nil {
		logger.Errorf("lua callback on %q failed: %v", d.Channel, err)
		h.r.recordError(err)
	}
}

// register installs the hub module, the handle type and print.
func (r *Runtime) register() {
	L := r.L

	mt := L.NewTypeMetatable(handleTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"pattern": handlePattern,
		"id":      handleID,
	}))
	L.SetField(mt, "__tostring", L.NewFunction(handleString))

	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"subscribe":   r.subscribe,
		"unsubscribe": r.unsubscribe,
		"publish":     r.publish,
		"match":       r.match,
	})
	L.SetGlobal("hub", mod)
	L.SetGlobal("print", L.NewFunction(r.print))
}

// callbackArg turns a Lua argument into a hub callback. Non-functions are
// passed through so the hub reports them as invalid.
func (r *Runtime) callbackArg(v lua.LValue) any {
	if fn, ok := v.(*lua.LFunction); ok {
		return luaHandler{r: r, fn: fn}
	}
	return v
}

// patternArg passes strings through as Go strings and anything else unchanged.
func patternArg(v lua.LValue) any {
	if s, ok := v.(lua.LString); ok {
		return string(s)
	}
	return v
}

// subscribe(pattern, fn) -> handle
func (r *Runtime) subscribe(L *lua.LState) int {
	handle, err := r.hub.SubscribeAny(patternArg(L.Get(1)), r.callbackArg(L.Get(2)))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	ud := L.NewUserData()
	ud.Value = handle
	L.SetMetatable(ud, L.GetTypeMetatable(handleTypeName))
	L.Push(ud)
	return 1
}

// unsubscribe(handle) or unsubscribe(pattern, fn)
func (r *Runtime) unsubscribe(L *lua.LState) int {
	first := L.Get(1)

	var target any = patternArg(first)
	if ud, ok := first.(*lua.LUserData); ok {
		if handle, ok := ud.Value.(hub.Handle); ok {
			target = handle
		}
	}

	if err := r.hub.UnsubscribeAny(target, r.callbackArg(L.Get(2))); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

// publish(channel, ...)
func (r *Runtime) publish(L *lua.LState) int {
	channel := L.CheckString(1)

	top := L.GetTop()
	data := make([]any, 0, top-1)
	for i := 2; i <= top; i++ {
		data = append(data, fromLua(L.Get(i)))
	}

	r.hub.Publish(channel, data...)
	return 0
}

// match(channel) -> {pattern...}
func (r *Runtime) match(L *lua.LState) int {
	keys := r.hub.Match(L.CheckString(1))
	tbl := L.CreateTable(len(keys), 0)
	for i, k := range keys {
		tbl.RawSetInt(i+1, lua.LString(k))
	}
	L.Push(tbl)
	return 1
}

// print(...) writes tab-separated values and a newline to the runtime output.
func (r *Runtime) print(L *lua.LState) int {
	top := L.GetTop()
	parts := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	if _, err := r.out.Write([]byte(strings.Join(parts, "\t") + "\n")); err != nil {
		logger.Warningf("print: %v", err)
	}
	return 0
}

func checkHandle(L *lua.LState) hub.Handle {
	ud := L.CheckUserData(1)
	handle, ok := ud.Value.(hub.Handle)
	if !ok {
		L.ArgError(1, "expected handle")
	}
	return handle
}

func handlePattern(L *lua.LState) int {
	L.Push(lua.LString(checkHandle(L).Pattern()))
	return 1
}

func handleID(L *lua.LState) int {
	L.Push(lua.LString(checkHandle(L).ID()))
	return 1
}

func handleString(L *lua.LState) int {
	handle := checkHandle(L)
	L.Push(lua.LString("handle(" + handle.Pattern() + ")"))
	return 1
}
