// Package ordered provides the insertion-ordered map used for attribute bags
// and representations.
package ordered

import (
	"bytes"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Map is a string-keyed map that remembers insertion order.
// Setting an existing key keeps its original position.
type Map[V any] struct {
	keys   []string
	values map[string]V
}

// New returns an empty map.
func New[V any]() *Map[V] {
	return &Map[V]{values: map[string]V{}}
}

// FromMap copies a plain map. Go maps carry no order, so keys are sorted.
func FromMap[V any](src map[string]V) *Map[V] {
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	m := &Map[V]{keys: keys, values: make(map[string]V, len(src))}
	for _, k := range keys {
		m.values[k] = src[k]
	}
	return m
}

// Set stores value under key.
func (m *Map[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = map[string]V{}
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	var zero V
	if m == nil || m.values == nil {
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[V]) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key. Missing keys are ignored.
func (m *Map[V]) Delete(key string) {
	if m == nil || m.values == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns a copy of the keys in insertion order.
func (m *Map[V]) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m *Map[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Range calls fn for each entry in order until fn returns false.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	if m == nil {
		return
	}
	for _, k := range m.Keys() {
		v, ok := m.values[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (m *Map[V]) Clone() *Map[V] {
	out := &Map[V]{values: make(map[string]V, m.Len())}
	if m == nil {
		return out
	}
	out.keys = m.Keys()
	for k, v := range m.values {
		out.values[k] = v
	}
	return out
}

// ToMap returns an unordered copy.
func (m *Map[V]) ToMap() map[string]V {
	out := make(map[string]V, m.Len())
	m.Range(func(k string, v V) bool {
		out[k] = v
		return true
	})
	return out
}

// MarshalJSON writes the entries as a JSON object in insertion order.
func (m *Map[V]) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
