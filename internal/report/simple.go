package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SimpleWriter outputs a plain-text summary for the terminal.
type SimpleWriter struct {
	baseWriter
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer) *SimpleWriter {
	return &SimpleWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *SimpleWriter) Write(s *Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	sb.WriteString("SITEGRAPH CRAWL SUMMARY\n")
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Seed:           %s (%s)\n", s.Seed, s.SeedLabel)
	fmt.Fprintf(&sb, "Base path:      %s\n", s.BasePath)
	fmt.Fprintf(&sb, "Mode:           %s\n", modeText(s))
	fmt.Fprintf(&sb, "Status:         %s\n", statusText(s))
	fmt.Fprintf(&sb, "Pages recorded: %d\n", s.Recorded)
	fmt.Fprintf(&sb, "Failed fetches: %d\n", s.FailedFetches)
	fmt.Fprintf(&sb, "Edges:          %d\n", s.Edges)
	if s.Abandoned > 0 {
		fmt.Fprintf(&sb, "Abandoned:      %d\n", s.Abandoned)
	}
	fmt.Fprintf(&sb, "Elapsed:        %s (%.1f pages/s)\n", s.Elapsed.Round(time.Millisecond), s.PagesPerSecond)
	fmt.Fprintf(&sb, "Log:            %s\n", s.Output)
	if s.RunID != "" {
		fmt.Fprintf(&sb, "Run ID:         %s\n", s.RunID)
	}

	if len(s.TopHubs) > 0 {
		sb.WriteString("\nTop pages by new links:\n")
		for i, h := range s.TopHubs {
			fmt.Fprintf(&sb, "  %2d. %s (%d) %s\n", i+1, h.Label, h.OutDegree, h.URL)
		}
	}
	if len(s.FailedPages) > 0 {
		sb.WriteString("\nFailed pages:\n")
		for _, p := range s.FailedPages {
			fmt.Fprintf(&sb, "  [!] %s\n", p)
		}
		if more := s.FailedFetches - len(s.FailedPages); more > 0 {
			fmt.Fprintf(&sb, "  ... and %d more\n", more)
		}
	}

	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func modeText(s *Summary) string {
	if s.Workers <= 0 {
		return s.Mode
	}
	return fmt.Sprintf("%s (%d workers)", s.Mode, s.Workers)
}

func statusText(s *Summary) string {
	if s.Error == "" || s.Status == StatusCompleted {
		return s.Status
	}
	return s.Status + " - " + s.Error
}
