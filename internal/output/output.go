package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mj1618/deskmirror/internal/model"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat maps a --format value to a Format. The empty string means YAML.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "yaml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported format: %s (use yaml or json)", s)
	}
}

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// Writer receives everything printed by this package.
var Writer io.Writer = os.Stdout

// ListResult is the output of the `list` command.
type ListResult struct {
	TS        int64          `yaml:"ts"                  json:"ts"`
	Frontmost string         `yaml:"frontmost,omitempty" json:"frontmost,omitempty"`
	Apps      []model.App    `yaml:"apps,omitempty"      json:"apps,omitempty"`
	Windows   []model.Window `yaml:"windows,omitempty"   json:"windows,omitempty"`
}

// SetResult is the output of commands that write properties and wait for
// the backend to settle them.
type SetResult struct {
	OK     bool          `yaml:"ok"               json:"ok"`
	Error  string        `yaml:"error,omitempty"  json:"error,omitempty"`
	Window *model.Window `yaml:"window,omitempty" json:"window,omitempty"`
	App    *model.App    `yaml:"app,omitempty"    json:"app,omitempty"`
	Events []EventRecord `yaml:"events,omitempty" json:"events,omitempty"`
}

// Print serializes v to Writer in the current output format.
func Print(v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		return PrintJSON(v, PrettyOutput)
	case FormatYAML:
		return PrintYAML(v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}

// PrintJSON serializes v to Writer as JSON.
// If pretty is true, uses indentation; otherwise single-line.
func PrintJSON(v interface{}, pretty bool) error {
	enc := json.NewEncoder(Writer)
	if pretty {
		enc.SetIndent("", "  ")
	}
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// PrintYAML serializes v to Writer as YAML.
func PrintYAML(v interface{}) error {
	enc := yaml.NewEncoder(Writer)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}

// YAML renders v as a YAML document string.
func YAML(v interface{}) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("yaml encode: %w", err)
	}
	return string(data), nil
}
