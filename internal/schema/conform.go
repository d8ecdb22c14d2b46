package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Decode parses a JSON object, keeping numbers as json.Number so they can be
// rendered back to text without float formatting noise.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("expected a JSON object, got null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after JSON object")
	}
	return obj, nil
}

// Conform repairs a decoded object into the template's shape: declared keys
// missing from obj get explicit empty values, undeclared keys are dropped,
// nulls become empty values and scalar leaves are rendered as strings.
// Shapes that cannot be repaired are left in place for Validate to report.
func (t *Template) Conform(obj map[string]any) Record {
	return Record(conformObject(t.Fields, obj))
}

func conformObject(fields []Field, obj map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		out[f.Name] = conformValue(f, obj[f.Name])
	}
	return out
}

func conformValue(f Field, v any) any {
	if v == nil {
		return emptyValue(f, false)
	}

	switch f.Kind {
	case KindString:
		if s, ok := scalarString(v); ok {
			return s
		}
		if items, ok := v.([]any); ok {
			parts := make([]string, 0, len(items))
			for _, item := range items {
				s, ok := scalarString(item)
				if !ok {
					return v
				}
				if s != "" {
					parts = append(parts, s)
				}
			}
			return strings.Join(parts, ", ")
		}

	case KindObject:
		switch val := v.(type) {
		case map[string]any:
			return conformObject(f.Fields, val)
		case []any:
			// a single object wrapped in a list
			if len(val) == 0 {
				return emptyValue(f, false)
			}
			if obj, ok := val[0].(map[string]any); ok && len(val) == 1 {
				return conformObject(f.Fields, obj)
			}
		case string:
			if strings.TrimSpace(val) == "" {
				return emptyValue(f, false)
			}
		}

	case KindList:
		switch val := v.(type) {
		case []any:
			items := make([]any, 0, len(val))
			for _, item := range val {
				if obj, ok := item.(map[string]any); ok {
					items = append(items, conformObject(f.Fields, obj))
					continue
				}
				if item == nil {
					continue
				}
				if len(f.Fields) > 0 {
					// A bare scalar fills the first sub-field of an object item.
					if s, ok := scalarString(item); ok {
						if strings.TrimSpace(s) != "" {
							items = append(items, conformObject(f.Fields, map[string]any{f.Fields[0].Name: s}))
						}
						continue
					}
				}
				items = append(items, item)
			}
			return items
		case map[string]any:
			return []any{conformObject(f.Fields, val)}
		case string:
			if strings.TrimSpace(val) == "" {
				return emptyValue(f, false)
			}
		}
	}

	return v
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case json.Number:
		return val.String(), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int:
		return strconv.Itoa(val), true
	case bool:
		return strconv.FormatBool(val), true
	case nil:
		return "", true
	}
	return "", false
}

// Copy returns a shallow copy of the record
func (r Record) Copy() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// String returns the string value of a top-level key, or "" when absent
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}
