package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
	"slices"
)

// Context carries the data shared across the tasks of an execution. Keys
// keep their insertion order, matching the order they appear on the wire.
// Set returns a copy, so a Context held by a task callable is a stable
// snapshot
type Context struct {
	keys   []string
	values map[string]any
}

// ResultKeySuffix is appended to a task name to form the context key that
// receives the task's result data
const ResultKeySuffix = "_result"

var ErrNotJSONObject = errors.New("context must be a JSON object")

// ResultKey returns the context key under which a task's result data is
// merged
func ResultKey(name TaskName) string {
	return string(name) + ResultKeySuffix
}

// NewContext creates an empty context
func NewContext() Context {
	return Context{
		values: map[string]any{},
	}
}

// Set returns a new Context with the key bound to value. An existing key
// keeps its original position; a new key is appended
func (c Context) Set(key string, value any) Context {
	res := Context{
		keys:   c.keys,
		values: maps.Clone(c.values),
	}
	if res.values == nil {
		res.values = map[string]any{}
	}
	if _, ok := res.values[key]; !ok {
		res.keys = append(slices.Clone(c.keys), key)
	}
	res.values[key] = value
	return res
}

// Get retrieves a value from the context
func (c Context) Get(key string) (any, bool) {
	val, ok := c.values[key]
	return val, ok
}

// Has returns true if the key is present in the context
func (c Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// GetString retrieves a string value, returning defaultValue if the key is
// absent or holds another type
func (c Context) GetString(key, defaultValue string) string {
	val, ok := c.values[key]
	if !ok {
		return defaultValue
	}
	str, ok := val.(string)
	if !ok {
		return defaultValue
	}
	return str
}

// GetBool retrieves a boolean value, returning defaultValue if the key is
// absent or holds another type
func (c Context) GetBool(key string, defaultValue bool) bool {
	val, ok := c.values[key]
	if !ok {
		return defaultValue
	}
	b, ok := val.(bool)
	if !ok {
		return defaultValue
	}
	return b
}

// GetInt retrieves an integer value, returning defaultValue if the key is
// absent or holds another type. Supports both int and float64 (converting
// from JSON numbers)
func (c Context) GetInt(key string, defaultValue int) int {
	val, ok := c.values[key]
	if !ok {
		return defaultValue
	}
	if i, ok := val.(int); ok {
		return i
	}
	if f, ok := val.(float64); ok {
		return int(f)
	}
	return defaultValue
}

// Keys returns the context keys in insertion order
func (c Context) Keys() []string {
	return slices.Clone(c.keys)
}

// Len returns the number of keys in the context
func (c Context) Len() int {
	return len(c.keys)
}

// IsEmpty returns true if the context has no keys
func (c Context) IsEmpty() bool {
	return len(c.keys) == 0
}

// AsMap returns a shallow copy of the context as a plain map
func (c Context) AsMap() map[string]any {
	if c.values == nil {
		return map[string]any{}
	}
	return maps.Clone(c.values)
}

// Clone returns a copy with fresh backing storage
func (c Context) Clone() Context {
	res := Context{
		keys:   slices.Clone(c.keys),
		values: maps.Clone(c.values),
	}
	if res.values == nil {
		res.values = map[string]any{}
	}
	return res
}

// MarshalJSON serializes the context as a JSON object with keys in
// insertion order
func (c Context) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(c.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON deserializes a JSON object, preserving its key order
func (c *Context) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = NewContext()
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotJSONObject
	}

	res := NewContext()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return err
		}
		res = res.Set(key, value)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = res
	return nil
}
