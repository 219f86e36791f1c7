// Package output writes CLI results as text, JSON or YAML.
// JSON and YAML keys come from the values' json tags.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Format represents the output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want text, json or yaml)", s)
	}
}

// TextRenderer is implemented by results with a human-friendly text form.
type TextRenderer interface {
	RenderText(w io.Writer) error
}

// Writer handles formatted output.
type Writer struct {
	format Format
	out    io.Writer
	errOut io.Writer
}

// Option configures the Writer.
type Option func(*Writer)

// WithOutput sets the standard output writer.
func WithOutput(w io.Writer) Option {
	return func(wr *Writer) {
		wr.out = w
	}
}

// WithErrorOutput sets the error output writer.
func WithErrorOutput(w io.Writer) Option {
	return func(wr *Writer) {
		wr.errOut = w
	}
}

// New creates a new output writer.
func New(format Format, opts ...Option) *Writer {
	w := &Writer{
		format: format,
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Format returns the configured format.
func (w *Writer) Format() Format {
	return w.format
}

// IsStructured reports whether output is machine-readable.
func (w *Writer) IsStructured() bool {
	return w.format == FormatJSON || w.format == FormatYAML
}

// Write outputs data in the configured format.
func (w *Writer) Write(data any) error {
	switch w.format {
	case FormatJSON:
		enc := json.NewEncoder(w.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		b, err := marshalYAML(data)
		if err != nil {
			return err
		}
		_, err = w.out.Write(b)
		return err
	case FormatText:
		if r, ok := data.(TextRenderer); ok {
			return r.RenderText(w.out)
		}
		_, err := fmt.Fprintf(w.out, "%v\n", data)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}

// WriteNDJSON outputs data as one JSON object per line in JSON mode.
func (w *Writer) WriteNDJSON(data any) error {
	switch w.format {
	case FormatJSON:
		return json.NewEncoder(w.out).Encode(data)
	case FormatText:
		_, err := fmt.Fprintf(w.out, "%v\n", data)
		return err
	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}

// Success outputs a success message.
func (w *Writer) Success(msg string) {
	if w.IsStructured() {
		_ = w.Write(map[string]any{"status": "success", "message": msg})
		return
	}
	fmt.Fprintf(w.errOut, "✓ %s\n", msg)
}

// ErrorPayload is the structured form of a CLI error.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Error outputs an error message. Structured formats write to stdout so a
// caller parsing the output sees the failure.
func (w *Writer) Error(err error) {
	if err == nil {
		return
	}
	if w.IsStructured() {
		_ = w.Write(ErrorPayload{Error: "error", Message: err.Error(), Code: 1})
		return
	}
	fmt.Fprintf(w.errOut, "✗ %s\n", err.Error())
}

// marshalYAML preserves JSON tags and field names by converting via JSON first.
func marshalYAML(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var normalized any
	if err := dec.Decode(&normalized); err != nil {
		return nil, err
	}
	b, err := yaml.Marshal(normalized)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	return b, nil
}
