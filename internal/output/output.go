package output

import (
	"fmt"
	"io"
	"os"
)

// Answer is the renderable result of one generation.
type Answer struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Cached    bool   `json:"cached"`
	ElapsedMs int64  `json:"elapsedMs"`
}

// Writer writes an answer in a specific format.
type Writer interface {
	Write(w io.Writer, answer *Answer) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteAnswer writes the answer to the specified output (file path or stdout).
func WriteAnswer(answer *Answer, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}
	return ToFile(outPath, func(w io.Writer) error {
		return writer.Write(w, answer)
	})
}

// ToFile runs fn against the file at outPath, or stdout when outPath is empty.
func ToFile(outPath string, fn func(io.Writer) error) error {
	if outPath == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()
	return fn(f)
}
