package luabind

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// toLua converts a Go value to a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return val
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []string:
		tbl := L.CreateTable(len(val), 0)
		for i, s := range val {
			tbl.RawSetInt(i+1, lua.LString(s))
		}
		return tbl
	case []any:
		tbl := L.CreateTable(len(val), 0)
		for i, item := range val {
			tbl.RawSetInt(i+1, toLua(L, item))
		}
		return tbl
	case map[string]any:
		tbl := L.NewTable()
		for k, item := range val {
			tbl.RawSetString(k, toLua(L, item))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprintf("%v", val))
	}
}

// fromLua converts a Lua value to a Go value.
// Tables whose keys are exactly 1..n become []any and other tables
// map[string]any. A table reached again through its own contents converts
// to nil. Functions and userdata are passed through unchanged so Lua
// subscribers receive them intact.
func fromLua(v lua.LValue) any {
	return fromLuaVisited(v, make(map[*lua.LTable]bool))
}

func fromLuaVisited(v lua.LValue, visiting map[*lua.LTable]bool) any {
	if v == nil || v == lua.LNil {
		return nil
	}

	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		if visiting[val] {
			return nil
		}
		visiting[val] = true
		defer delete(visiting, val)
		return tableToGo(val, visiting)
	default:
		return v
	}
}

func tableToGo(tbl *lua.LTable, visiting map[*lua.LTable]bool) any {
	isArray := true
	maxN, count := 0, 0
	tbl.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	// Sparse keys such as {[1e9] = 1} are maps, not huge slices.
	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = fromLuaVisited(tbl.RawGetInt(i), visiting)
		}
		return arr
	}

	result := make(map[string]any, count)
	tbl.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		result[key] = fromLuaVisited(v, visiting)
	})
	return result
}
