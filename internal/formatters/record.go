package formatters

import (
	"fmt"
	"strings"

	"cvmatch/internal/schema"

	"gopkg.in/yaml.v3"
)

// label turns a field name such as "job_title" into "Job Title"
func label(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func appendScalar(m *yaml.Node, key, value string) {
	m.Content = append(m.Content, scalarNode(key), scalarNode(value))
}

func appendBool(m *yaml.Node, key string, value bool) {
	m.Content = append(m.Content, scalarNode(key), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(value)})
}

// recordNode builds a YAML mapping that follows the field order
func recordNode(fields []schema.Field, obj map[string]any) *yaml.Node {
	node := mappingNode()
	for _, f := range fields {
		node.Content = append(node.Content, scalarNode(f.Name), valueNode(f, obj[f.Name]))
	}
	return node
}

func valueNode(f schema.Field, v any) *yaml.Node {
	switch f.Kind {
	case schema.KindObject:
		if obj, ok := v.(map[string]any); ok {
			return recordNode(f.Fields, obj)
		}
		return recordNode(f.Fields, nil)
	case schema.KindList:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		items, _ := v.([]any)
		for _, item := range items {
			if obj, ok := item.(map[string]any); ok {
				seq.Content = append(seq.Content, recordNode(f.Fields, obj))
				continue
			}
			seq.Content = append(seq.Content, scalarNode(stringValue(item)))
		}
		return seq
	default:
		return scalarNode(stringValue(v))
	}
}

// writeRecordText renders fields as indented "Label: value" lines. Empty
// values are skipped.
func writeRecordText(out *strings.Builder, fields []schema.Field, obj map[string]any, indent string) {
	for _, f := range fields {
		v := obj[f.Name]
		switch f.Kind {
		case schema.KindObject:
			sub, _ := v.(map[string]any)
			if isEmpty(f, sub) {
				continue
			}
			fmt.Fprintf(out, "%s%s:\n", indent, label(f.Name))
			writeRecordText(out, f.Fields, sub, indent+"  ")
		case schema.KindList:
			items, _ := v.([]any)
			if len(items) == 0 {
				continue
			}
			fmt.Fprintf(out, "%s%s:\n", indent, label(f.Name))
			for _, item := range items {
				writeListItem(out, f.Fields, item, indent+"  ", "- ")
			}
		default:
			if s := stringValue(v); s != "" {
				fmt.Fprintf(out, "%s%s: %s\n", indent, label(f.Name), s)
			}
		}
	}
}

func writeListItem(out *strings.Builder, fields []schema.Field, item any, indent, bullet string) {
	obj, ok := item.(map[string]any)
	if !ok {
		fmt.Fprintf(out, "%s%s%s\n", indent, bullet, stringValue(item))
		return
	}
	first := true
	for _, f := range fields {
		s := stringValue(obj[f.Name])
		if s == "" {
			continue
		}
		prefix := strings.Repeat(" ", len(bullet))
		if first {
			prefix = bullet
			first = false
		}
		fmt.Fprintf(out, "%s%s%s: %s\n", indent, prefix, label(f.Name), s)
	}
}

// writeRecordMarkdown renders top-level strings as a bullet list and
// nested blocks as subsections
func writeRecordMarkdown(out *strings.Builder, fields []schema.Field, obj map[string]any, level int) {
	heading := strings.Repeat("#", level)

	var scalars []schema.Field
	for _, f := range fields {
		if f.Kind == schema.KindString && stringValue(obj[f.Name]) != "" {
			scalars = append(scalars, f)
		}
	}
	for _, f := range scalars {
		fmt.Fprintf(out, "- **%s:** %s\n", label(f.Name), stringValue(obj[f.Name]))
	}
	if len(scalars) > 0 {
		out.WriteString("\n")
	}

	for _, f := range fields {
		switch f.Kind {
		case schema.KindObject:
			sub, _ := obj[f.Name].(map[string]any)
			if isEmpty(f, sub) {
				continue
			}
			fmt.Fprintf(out, "%s %s\n\n", heading, label(f.Name))
			writeRecordMarkdown(out, f.Fields, sub, level+1)
		case schema.KindList:
			items, _ := obj[f.Name].([]any)
			if len(items) == 0 {
				continue
			}
			fmt.Fprintf(out, "%s %s\n\n", heading, label(f.Name))
			for _, item := range items {
				itemObj, ok := item.(map[string]any)
				if !ok {
					fmt.Fprintf(out, "- %s\n", stringValue(item))
					continue
				}
				var parts []string
				for _, sf := range f.Fields {
					if s := stringValue(itemObj[sf.Name]); s != "" {
						parts = append(parts, fmt.Sprintf("**%s:** %s", label(sf.Name), s))
					}
				}
				if len(parts) > 0 {
					fmt.Fprintf(out, "- %s\n", strings.Join(parts, "; "))
				}
			}
			out.WriteString("\n")
		}
	}
}

// isEmpty reports whether an object block holds no text at any depth
func isEmpty(f schema.Field, obj map[string]any) bool {
	for _, sub := range f.Fields {
		switch sub.Kind {
		case schema.KindObject:
			nested, _ := obj[sub.Name].(map[string]any)
			if !isEmpty(sub, nested) {
				return false
			}
		case schema.KindList:
			if items, _ := obj[sub.Name].([]any); len(items) > 0 {
				return false
			}
		default:
			if stringValue(obj[sub.Name]) != "" {
				return false
			}
		}
	}
	return true
}
