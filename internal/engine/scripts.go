package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/flumeworks/flume/pkg/api"
	"github.com/flumeworks/flume/pkg/log"
	"github.com/flumeworks/flume/pkg/util"
)

type (
	// ScriptRegistry manages script environments for different languages
	ScriptRegistry struct {
		envs map[string]ScriptEnvironment
	}

	// ScriptEnvironment defines the interface for script execution
	// environments
	ScriptEnvironment interface {
		// Validate checks if a script is syntactically valid
		Validate(name, src string) error

		// Compile compiles a script and returns the compiled form
		Compile(name, src string) (Compiled, error)

		// Execute runs a compiled script against an execution context
		// snapshot and returns its result value
		Execute(c Compiled, ec api.Context) (any, error)
	}

	// Compiled represents a compiled script for any supported language.
	// Concrete types: *CompiledLua (Lua), data.Procedure (Ale),
	// *goja.Program (JavaScript)
	Compiled any

	// ScriptHandler adapts a compiled script to the task Handler
	// capability, so flows can be served by scripts
	ScriptHandler struct {
		env      ScriptEnvironment
		compiled Compiled
	}

	compileFunc[T any] func(name, src string) (T, error)

	scriptCompiler[T any] struct {
		cache *util.LRUCache[T]
		build compileFunc[T]
	}
)

const (
	ScriptLangLua = "lua"
	ScriptLangAle = "ale"
	ScriptLangJS  = "js"
)

var (
	ErrUnsupportedLanguage = errors.New("unsupported script language")

	// extLanguages maps script file extensions to their languages
	extLanguages = map[string]string{
		".lua": ScriptLangLua,
		".ale": ScriptLangAle,
		".js":  ScriptLangJS,
	}
)

// NewScriptRegistry creates a script registry with the Lua, Ale, and
// JavaScript environments
func NewScriptRegistry() *ScriptRegistry {
	return &ScriptRegistry{
		envs: map[string]ScriptEnvironment{
			ScriptLangLua: NewLuaEnv(),
			ScriptLangAle: NewAleEnv(),
			ScriptLangJS:  NewJSEnv(),
		},
	}
}

// Get returns the script environment for the given language
func (r *ScriptRegistry) Get(language string) (ScriptEnvironment, error) {
	env, ok := r.envs[language]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	return env, nil
}

// LoadDir compiles every recognized script file in dir and registers each
// one as a task handler named after its file
func (r *ScriptRegistry) LoadDir(reg *Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		lang, ok := extLanguages[ext]
		if !ok {
			continue
		}

		src, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		env, err := r.Get(lang)
		if err != nil {
			return err
		}
		compiled, err := env.Compile(entry.Name(), string(src))
		if err != nil {
			return fmt.Errorf("script %s: %w", entry.Name(), err)
		}

		name := api.TaskName(strings.TrimSuffix(entry.Name(), ext))
		if err := reg.Register(name, NewScriptHandler(env, compiled)); err != nil {
			return err
		}

		slog.Info("Script task registered",
			log.TaskName(name),
			slog.String("language", lang))
	}
	return nil
}

// NewScriptHandler wraps a compiled script as a task handler
func NewScriptHandler(env ScriptEnvironment, c Compiled) *ScriptHandler {
	return &ScriptHandler{
		env:      env,
		compiled: c,
	}
}

// Execute runs the script against the execution context snapshot
func (h *ScriptHandler) Execute(
	_ context.Context, ec api.Context,
) (any, error) {
	return h.env.Execute(h.compiled, ec)
}

func newScriptCompiler[T any](
	size int, build compileFunc[T],
) *scriptCompiler[T] {
	return &scriptCompiler[T]{
		cache: util.NewLRUCache[T](size),
		build: build,
	}
}

// Validate checks a script by compiling it
func (c *scriptCompiler[T]) Validate(name, src string) error {
	_, err := c.Compile(name, src)
	return err
}

// Compile returns the cached compiled form of a script, building it on
// first use
func (c *scriptCompiler[T]) Compile(name, src string) (Compiled, error) {
	return c.cache.Get(hashScript(name, src), func() (T, error) {
		return c.build(name, src)
	})
}

func hashScript(name, src string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}
