// Package ordmap provides a string-keyed map that preserves insertion
// order through both construction and JSON round-tripping. spec.md §5
// requires that "map iteration order over formula inputs, step inputs,
// and plot outputs is the insertion order of the originating document" —
// Go's built-in map gives no such guarantee, so every ordered field in
// internal/formula and internal/plot uses this type instead.
package ordmap

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Map is an insertion-ordered string-keyed map of V.
type Map[V any] struct {
	keys []string
	vals map[string]V
}

// New returns an empty ordered map.
func New[V any]() *Map[V] {
	return &Map[V]{vals: make(map[string]V)}
}

// Set inserts or updates key. Updating an existing key does not change
// its position in iteration order.
func (m *Map[V]) Set(key string, val V) {
	if m.vals == nil {
		m.vals = make(map[string]V)
	}
	if _, exists := m.vals[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = val
}

// Get returns the value for key and whether it was present.
func (m *Map[V]) Get(key string) (V, bool) {
	v, ok := m.vals[key]
	return v, ok
}

// Keys returns the keys in insertion order. The returned slice must not
// be mutated by the caller.
func (m *Map[V]) Keys() []string {
	return m.keys
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	return len(m.keys)
}

// Range calls fn for each entry in insertion order, stopping early if fn
// returns false.
func (m *Map[V]) Range(fn func(key string, val V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.vals[k]) {
			return
		}
	}
}

// MarshalJSON emits a JSON object with keys in insertion order.
func (m *Map[V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object preserving the source key order,
// using json.Decoder token-by-token rather than json.Unmarshal into a
// Go map (which would discard order).
func (m *Map[V]) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("ordmap: expected JSON object, got %v", tok)
	}

	*m = Map[V]{vals: make(map[string]V)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("ordmap: expected string key, got %v", keyTok)
		}
		var val V
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("ordmap: decode value for key %q: %w", key, err)
		}
		m.Set(key, val)
	}

	if _, err := dec.Token(); err != nil { // consume closing '}'
		return err
	}
	return nil
}
