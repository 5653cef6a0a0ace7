package app

import (
	"encoding/json"
	"fmt"
	"io"
)

// Render writes v as indented JSON when format is "json" and through text otherwise
func Render(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "text", "":
		text(w)
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", format)
	}
	return nil
}

// OrNone prints "-" for empty values
func OrNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
