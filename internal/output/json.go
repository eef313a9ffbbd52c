package output

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONWriter outputs the full answer as JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, answer *Answer) error {
	return WriteJSON(w, answer)
}

// WriteJSON renders any value as indented JSON with a trailing newline.
func WriteJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
