package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Example renders the template as an indented JSON skeleton with empty
// values. List fields carry a single empty item so their shape is visible.
func (t *Template) Example() string {
	return mustIndent(t.encodeObject(t.Fields, skeleton(t.Fields, true)))
}

// EnrichmentExample renders only the enrichment block, wrapped in its key.
func (t *Template) EnrichmentExample() string {
	enrichment := t.Enrichment()
	wrapper := []Field{enrichment}
	return mustIndent(t.encodeObject(wrapper, map[string]any{
		EnrichmentKey: skeleton(enrichment.Fields, true),
	}))
}

// Empty returns a record holding the explicit empty value of every field.
func (t *Template) Empty() Record {
	return Record(skeleton(t.Fields, false))
}

// Encode serializes a record as indented JSON with keys in template order.
// Keys the template does not declare follow in sorted order.
func (t *Template) Encode(r Record) ([]byte, error) {
	raw, err := t.encodeObject(t.Fields, r)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to indent %s record: %w", t.Name, err)
	}
	return out.Bytes(), nil
}

func skeleton(fields []Field, withItem bool) map[string]any {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Name] = emptyValue(f, withItem)
	}
	return m
}

func emptyValue(f Field, withItem bool) any {
	switch f.Kind {
	case KindObject:
		return skeleton(f.Fields, withItem)
	case KindList:
		if withItem {
			return []any{skeleton(f.Fields, withItem)}
		}
		return []any{}
	default:
		return ""
	}
}

func (t *Template) encodeObject(fields []Field, m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	declared := make(map[string]bool, len(fields))
	first := true
	writeKey := func(key string) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := marshal(key)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		return nil
	}

	for _, f := range fields {
		declared[f.Name] = true
		v, ok := m[f.Name]
		if !ok {
			continue
		}
		if err := writeKey(f.Name); err != nil {
			return nil, err
		}
		encoded, err := t.encodeField(f, v)
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}

	var extras []string
	for k := range m {
		if !declared[k] {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	for _, k := range extras {
		if err := writeKey(k); err != nil {
			return nil, err
		}
		encoded, err := marshal(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Template) encodeField(f Field, v any) ([]byte, error) {
	switch f.Kind {
	case KindObject:
		if obj, ok := asObject(v); ok {
			return t.encodeObject(f.Fields, obj)
		}
	case KindList:
		items, ok := v.([]any)
		if !ok {
			break
		}
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range items {
			if i > 0 {
				buf.WriteByte(',')
			}
			var encoded []byte
			var err error
			if obj, ok := asObject(item); ok {
				encoded, err = t.encodeObject(f.Fields, obj)
			} else {
				encoded, err = marshal(item)
			}
			if err != nil {
				return nil, err
			}
			buf.Write(encoded)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	}
	return marshal(v)
}

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Record:
		return obj, true
	}
	return nil, false
}

// marshal encodes v without HTML escaping so résumé text stays readable
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func mustIndent(raw []byte, err error) string {
	if err != nil {
		// skeletons hold only strings, maps and slices
		panic(err)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		panic(err)
	}
	return out.String()
}
