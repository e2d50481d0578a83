package report

import (
	"errors"
	"fmt"
	"io"
)

// ErrUnknownFormat is returned by NewWriter for an unsupported format.
var ErrUnknownFormat = errors.New("unknown summary format")

// Writer renders a Summary.
type Writer interface {
	// Write outputs the summary and returns the number of bytes written.
	Write(s *Summary) (int, error)
}

// NewWriter returns the Writer for format: text, json or markdown.
func NewWriter(format string, output io.Writer) (Writer, error) {
	switch format {
	case "text":
		return NewSimpleWriter(output), nil
	case "json":
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case "markdown":
		return NewMarkdownWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// baseWriter holds the output shared by all writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
