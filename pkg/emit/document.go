package emit

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Map is a string-keyed mapping that keeps insertion order when encoded as
// YAML or JSON.
type Map struct {
	keys []string
	vals map[string]any
}

func NewMap() *Map {
	return &Map{vals: make(map[string]any)}
}

// Set stores v under key. A new key goes last; an existing key keeps its
// position.
func (m *Map) Set(key string, v any) *Map {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
	return m
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.vals[key]
	return v, ok
}

func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *Map) Len() int { return len(m.keys) }

// MarshalYAML implements yaml.Marshaler.
func (m *Map) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range m.keys {
		var val yaml.Node
		if err := val.Encode(m.vals[k]); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&val)
	}
	return node, nil
}

// MarshalJSON implements json.Marshaler.
func (m *Map) MarshalJSON() ([]byte, error) {
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
		val, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Plain converts m to the generic map[string]any / []any form used by
// query engines. Key order is lost.
func (m *Map) Plain() map[string]any {
	out := make(map[string]any, len(m.keys))
	for _, k := range m.keys {
		out[k] = plain(m.vals[k])
	}
	return out
}

func plain(v any) any {
	switch v := v.(type) {
	case *Map:
		return v.Plain()
	case []*Map:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e.Plain()
		}
		return out
	case []int:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = e
		}
		return out
	default:
		return v
	}
}
