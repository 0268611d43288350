package engine

import (
	"errors"
	"fmt"

	"github.com/kode4food/ale"
	"github.com/kode4food/ale/core/bootstrap"
	"github.com/kode4food/ale/data"
	"github.com/kode4food/ale/env"
	"github.com/kode4food/ale/eval"

	"github.com/flumeworks/flume/pkg/api"
)

// AleEnv provides an Ale script execution environment. Scripts are wrapped
// in a single-parameter lambda that receives the execution context
type AleEnv struct {
	*scriptCompiler[data.Procedure]
	env *env.Environment
}

const (
	aleCacheSize      = 4096
	aleLambdaTemplate = "(lambda (%s) %s)"
	aleContextArgName = "context"
)

var (
	ErrAleBadCompiledType = errors.New("expected data.Procedure")
	ErrAleNotProcedure    = errors.New("not a procedure")
	ErrAleCompile         = errors.New("script compile error")
	ErrAleCall            = errors.New("error calling procedure")
)

func NewAleEnv() *AleEnv {
	e := env.NewEnvironment()
	bootstrap.Into(e)
	res := &AleEnv{
		env: e,
	}
	res.scriptCompiler = newScriptCompiler(aleCacheSize, res.compile)
	return res
}

// Execute calls a compiled Ale procedure with the execution context as its
// sole argument and returns the result converted to JSON-compatible form
func (e *AleEnv) Execute(c Compiled, ec api.Context) (any, error) {
	proc, ok := c.(data.Procedure)
	if !ok {
		return nil, fmt.Errorf("%w, got %T", ErrAleBadCompiledType, c)
	}

	arg := jsonToAle(ec.AsMap())
	res, err := catchPanic(ErrAleCall,
		func() (ale.Value, error) {
			return proc.Call(arg), nil
		},
	)
	if err != nil {
		return nil, err
	}
	return aleToJSON(res), nil
}

func (e *AleEnv) compile(_, src string) (data.Procedure, error) {
	wrapped := fmt.Sprintf(aleLambdaTemplate, aleContextArgName, src)

	return catchPanic(ErrAleCompile,
		func() (data.Procedure, error) {
			ns := e.env.GetAnonymous()
			res, err := eval.String(ns, data.String(wrapped))
			if err != nil {
				return nil, err
			}

			proc, ok := res.(data.Procedure)
			if !ok {
				return nil, fmt.Errorf("%w, got: %T", ErrAleNotProcedure, res)
			}
			return proc, nil
		},
	)
}

func jsonToAle(value any) ale.Value {
	switch v := value.(type) {
	case string:
		return data.String(v)
	case bool:
		return data.Bool(v)
	case int:
		return data.Integer(v)
	case int64:
		return data.Integer(v)
	case float64:
		return data.Float(v)
	case []any:
		return jsonArrayToAle(v)
	case map[string]any:
		return jsonMapToAle(v)
	case nil:
		return data.Null
	default:
		return data.String(fmt.Sprintf("%v", v))
	}
}

func jsonArrayToAle(arr []any) data.Vector {
	vec := make(data.Vector, len(arr))
	for i, item := range arr {
		vec[i] = jsonToAle(item)
	}
	return vec
}

func jsonMapToAle(m map[string]any) *data.Object {
	obj := data.NewObject()
	for k, val := range m {
		pair := data.NewCons(data.Keyword(k), jsonToAle(val))
		obj = obj.Put(pair).(*data.Object)
	}
	return obj
}

func aleToJSON(value ale.Value) any {
	switch v := value.(type) {
	case data.String:
		return string(v)
	case data.Bool:
		return bool(v)
	case data.Keyword:
		return string(v)
	case data.Integer:
		return int(v)
	case data.Float:
		return float64(v)
	case data.Vector:
		return aleVectorToJSON(v)
	case *data.List:
		return aleListToJSON(v)
	case *data.Object:
		return aleObjectToJSON(v)
	default:
		return aleDefaultToJSON(value, v)
	}
}

func aleVectorToJSON(v data.Vector) []any {
	result := make([]any, len(v))
	for i, item := range v {
		result[i] = aleToJSON(item)
	}
	return result
}

func aleListToJSON(list *data.List) []any {
	var result []any
	for l := list; !l.IsEmpty(); {
		head, tail, ok := l.Split()
		if !ok {
			break
		}
		result = append(result, aleToJSON(head))
		l = tail.(*data.List)
	}
	return result
}

func aleObjectToJSON(obj *data.Object) map[string]any {
	result := map[string]any{}
	for _, pair := range obj.Pairs() {
		keyStr := fmt.Sprintf("%v", aleToJSON(pair.Car()))
		result[keyStr] = aleToJSON(pair.Cdr())
	}
	return result
}

func aleDefaultToJSON(value ale.Value, v any) any {
	if value == data.Null {
		return nil
	}
	return fmt.Sprintf("%v", v)
}

func catchPanic[T any](baseErr error, fn func() (T, error)) (res T, err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e, ok := r.(error)
		if ok {
			err = e
			return
		}
		err = fmt.Errorf("%w: %v", baseErr, r)
	}()
	return fn()
}
