// Package optional models sparse PATCH payloads: every field knows whether it
// was absent, explicitly null, or carried a value.
package optional

import (
	"bytes"
	"encoding/json"
)

// Field is a JSON field that records its own presence.
type Field[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Of returns a present, non-null field.
func Of[T any](v T) Field[T] {
	return Field[T]{Value: v, Set: true}
}

// Null returns a present field explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// Present reports whether the field carries a non-null value.
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

// Get returns the value and whether it is present.
func (f Field[T]) Get() (T, bool) {
	return f.Value, f.Present()
}

// OrElse returns the value if present, otherwise def.
func (f Field[T]) OrElse(def T) T {
	if f.Present() {
		return f.Value
	}
	return def
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}
