package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/flumeworks/flume/pkg/api"
)

// JSEnv provides a JavaScript script execution environment. The execution
// context is exposed to scripts as the $ global
type JSEnv struct {
	*scriptCompiler[*goja.Program]
}

const (
	jsCacheSize       = 4096
	jsContextTemplate = "var %s = %s;\n"
	jsContextGlobal   = "$"
)

var (
	ErrJSBadCompiledType = errors.New("expected *goja.Program")
	ErrJSCompile         = errors.New("js compile error")
	ErrJSExecution       = errors.New("js execution error")
	ErrJSResult          = errors.New("js result not serializable")
)

func NewJSEnv() *JSEnv {
	e := &JSEnv{}
	e.scriptCompiler = newScriptCompiler(jsCacheSize, e.compile)
	return e
}

// Execute runs a compiled JavaScript program on a fresh VM with the
// execution context bound to $ and returns the program's completion value
func (e *JSEnv) Execute(c Compiled, ec api.Context) (any, error) {
	prog, ok := c.(*goja.Program)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrJSBadCompiledType, c)
	}

	ctxJSON, err := json.Marshal(ec)
	if err != nil {
		return nil, err
	}

	vm := goja.New()
	inject := fmt.Sprintf(jsContextTemplate, jsContextGlobal, ctxJSON)
	if _, err := vm.RunString(inject); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSExecution, err)
	}

	val, err := vm.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSExecution, err)
	}
	if val == nil {
		return nil, nil
	}

	exported := val.Export()
	if exported == nil {
		return nil, nil
	}

	res, err := json.Marshal(exported)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSResult, err)
	}
	var result any
	if err := json.Unmarshal(res, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSResult, err)
	}
	return result, nil
}

func (e *JSEnv) compile(name, src string) (*goja.Program, error) {
	prog, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJSCompile, err)
	}
	return prog, nil
}
