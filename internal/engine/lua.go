package engine

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/flumeworks/flume/pkg/api"
)

type (
	// LuaEnv provides a Lua script execution environment with state pooling
	LuaEnv struct {
		*scriptCompiler[*CompiledLua]
		statePool chan *lua.State
	}

	// CompiledLua represents a compiled Lua script
	CompiledLua struct {
		bytecode []byte
	}
)

const (
	luaCacheSize        = 4096
	luaStatePoolSize    = 10
	luaGlobalTableIndex = -2
	luaArrayTableIndex  = -3
	luaMapTableIndex    = -3
	luaArgLocalTemplate = "local %s = select(%d, ...)"
	luaScriptSeparator  = "\n"
	luaGlobalTableName  = "_G"
	luaContextArgName   = "context"
)

var (
	ErrLuaBadCompiledType = errors.New("expected *CompiledLua")
	ErrLuaLoad            = errors.New("lua load error")
	ErrLuaExecution       = errors.New("lua execution error")
)

var luaExclude = [...]string{
	"io", "os", "debug", "package", "require", "dofile", "loadfile", "load",
}

// NewLuaEnv creates a new Lua script execution environment with a state pool
// for efficient script reuse
func NewLuaEnv() *LuaEnv {
	e := &LuaEnv{
		statePool: make(chan *lua.State, luaStatePoolSize),
	}
	e.scriptCompiler = newScriptCompiler(luaCacheSize, e.compile)
	return e
}

// Execute runs a compiled Lua script with the execution context bound to
// the context local and returns the script's result value
func (e *LuaEnv) Execute(c Compiled, ec api.Context) (any, error) {
	script, ok := c.(*CompiledLua)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrLuaBadCompiledType, c)
	}

	L := e.getState()
	defer e.returnState(L)

	e.setupSandbox(L)
	if err := L.Load(bytes.NewReader(script.bytecode), "chunk", "b"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	goToLua(L, ec.AsMap())
	if err := L.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaExecution, err)
	}

	var result any
	if L.IsTable(-1) {
		result = luaTableToAny(L, -1)
	} else {
		result = luaToGo(L, -1)
	}
	L.Pop(1)

	return result, nil
}

func (e *LuaEnv) compile(_, src string) (*CompiledLua, error) {
	ctxLocal := fmt.Sprintf(luaArgLocalTemplate, luaContextArgName, 1)
	wrapped := strings.Join([]string{ctxLocal, src}, luaScriptSeparator)

	L := lua.NewState()

	e.setupSandbox(L)

	if err := lua.LoadString(L, wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLuaLoad, err)
	}

	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, err
	}

	return &CompiledLua{
		bytecode: buf.Bytes(),
	}, nil
}

func (e *LuaEnv) setupSandbox(L *lua.State) {
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
}

func (e *LuaEnv) getState() *lua.State {
	select {
	case L := <-e.statePool:
		return L
	default:
		return lua.NewState()
	}
}

func (e *LuaEnv) returnState(L *lua.State) {
	L.SetTop(0)

	select {
	case e.statePool <- L:
	default:
	}
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case map[string]any:
		pushLuaMap(L, v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(luaArrayTableIndex)
	}
}

func pushLuaMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(luaMapTableIndex)
	}
}

func luaNumberToGo(L *lua.State, index int) any {
	num, _ := L.ToNumber(index)
	if num == float64(int(num)) {
		return int(num)
	}
	return num
}

func luaToGo(L *lua.State, index int) any {
	switch {
	case L.IsNil(index):
		return nil
	case L.IsBoolean(index):
		return L.ToBoolean(index)
	case L.IsNumber(index):
		return luaNumberToGo(L, index)
	case L.IsString(index):
		s, _ := L.ToString(index)
		return s
	case L.IsTable(index):
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

func luaTableToAny(L *lua.State, index int) any {
	isArray := true
	length := 0

	L.PushNil()
	for L.Next(index - 1) {
		if !L.IsNumber(-2) {
			isArray = false
			L.Pop(1)
			break
		}
		length++
		L.Pop(1)
	}

	if isArray && length > 0 {
		return convertLuaArray(L, index, length)
	}

	result := map[string]any{}
	L.PushNil()
	for L.Next(index - 1) {
		var key string
		if !L.IsString(-2) {
			key = fmt.Sprintf("%v", luaToGo(L, -2))
			result[key] = luaToGo(L, -1)
			L.Pop(1)
			continue
		}
		key, _ = L.ToString(-2)
		result[key] = luaToGo(L, -1)
		L.Pop(1)
	}

	return result
}

func convertLuaArray(L *lua.State, index, length int) []any {
	arr := make([]any, length)
	absIndex := index
	if index < 0 {
		absIndex = L.Top() + index + 1
	}
	for i := 1; i <= length; i++ {
		L.RawGetInt(absIndex, i)
		arr[i-1] = luaToGo(L, -1)
		L.Pop(1)
	}
	return arr
}
