package formatters

import (
	"encoding/json"
	"fmt"
	"sort"

	"cvmatch/internal/types"

	"gopkg.in/yaml.v3"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("yaml", "any", &YAMLFormatter{})
	registry.RegisterFormatter("yaml", "DocumentResult", &DocumentYAMLFormatter{})
	registry.RegisterFormatter("text", "RunResult", &RunTextFormatter{})
	registry.RegisterFormatter("markdown", "RunResult", &RunMarkdownFormatter{})
	registry.RegisterFormatter("text", "DocumentResult", &DocumentTextFormatter{})
	registry.RegisterFormatter("markdown", "DocumentResult", &DocumentMarkdownFormatter{})
	registry.RegisterFormatter("text", "GapReport", &GapTextFormatter{})
	registry.RegisterFormatter("markdown", "GapReport", &GapMarkdownFormatter{})
	registry.RegisterFormatter("text", "Questionnaire", &QuestionnaireTextFormatter{})
	registry.RegisterFormatter("markdown", "Questionnaire", &QuestionnaireMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter. Pointers to the
// result types are formatted like the values they point to.
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	data = deref(data)
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats, sorted
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

func deref(data any) any {
	switch v := data.(type) {
	case *types.RunResult:
		if v != nil {
			return *v
		}
	case *types.DocumentResult:
		if v != nil {
			return *v
		}
	case *types.GapReport:
		if v != nil {
			return *v
		}
	case *types.Questionnaire:
		if v != nil {
			return *v
		}
	}
	return data
}

func getDataType(data any) string {
	switch data.(type) {
	case types.RunResult:
		return "RunResult"
	case types.DocumentResult:
		return "DocumentResult"
	case types.GapReport:
		return "GapReport"
	case types.Questionnaire:
		return "Questionnaire"
	default:
		return "any"
	}
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// YAMLFormatter handles YAML formatting for any data type
type YAMLFormatter struct{}

func (yf *YAMLFormatter) Format(data any) (string, error) {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(yamlData), nil
}

func (yf *YAMLFormatter) SupportedType() string {
	return "any"
}

// DocumentYAMLFormatter keeps record keys in template order
type DocumentYAMLFormatter struct{}

func (df *DocumentYAMLFormatter) Format(data any) (string, error) {
	result, ok := data.(types.DocumentResult)
	if !ok {
		return "", fmt.Errorf("expected DocumentResult, got %T", data)
	}

	doc := mappingNode()
	appendScalar(doc, "kind", string(result.Kind))
	if result.Source != "" {
		appendScalar(doc, "source", result.Source)
	}
	appendBool(doc, "enriched", result.Enriched)
	if result.Warning != "" {
		appendScalar(doc, "warning", result.Warning)
	}
	if result.Record != nil {
		doc.Content = append(doc.Content, scalarNode("record"), recordNode(result.Kind.Template().Fields, map[string]any(result.Record)))
	}

	yamlData, err := yaml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(yamlData), nil
}

func (df *DocumentYAMLFormatter) SupportedType() string {
	return "DocumentResult"
}

// GlobalRegistry is the registry shared by the CLI and the artifact writer
var GlobalRegistry = NewFormatterRegistry()
