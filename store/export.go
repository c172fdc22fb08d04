package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"
	yaml "gopkg.in/yaml.v3"

	"todo-app/model"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Export writes state to w in the given format.
func Export(w io.Writer, format string, state model.State) error {
	if state.Tasks == nil {
		state.Tasks = []model.Task{}
	}
	if state.Categories == nil {
		state.Categories = []model.Category{}
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(state); err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return enc.Close()
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(state); err != nil {
			return fmt.Errorf("failed to marshal TOML: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format: %s. Supported formats are json, yaml, toml", format)
	}
}
