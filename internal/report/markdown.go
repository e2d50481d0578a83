package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs the summary as a Markdown document.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write implements Writer.
func (w *MarkdownWriter) Write(s *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Summary: " + s.SeedLabel)
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + s.Seed + "`"},
		{"Base Path", "`" + s.BasePath + "`"},
		{"Mode", modeText(s)},
		{"Status", statusText(s)},
		{"Pages Recorded", strconv.Itoa(s.Recorded)},
		{"Failed Fetches", strconv.Itoa(s.FailedFetches)},
		{"Edges", strconv.Itoa(s.Edges)},
		{"Abandoned", strconv.Itoa(s.Abandoned)},
		{"Elapsed", s.Elapsed.Round(time.Millisecond).String()},
		{"Log", "`" + s.Output + "`"},
	}
	if s.RunID != "" {
		rows = append(rows, []string{"Run ID", "`" + s.RunID + "`"})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if s.Recorded > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
	w.writeHubs(md, s)
	w.writeFailed(md, s)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [sitegraph](https://github.com/nao1215/sitegraph)*")

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s *Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Results"),
		piechart.WithShowData(true),
	)
	if ok := s.Recorded - s.FailedFetches; ok > 0 {
		chart.LabelAndIntValue("Fetched", uint64(ok))
	}
	if s.FailedFetches > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.FailedFetches))
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s *Summary) {
	switch {
	case s.Status == StatusFailed:
		md.Cautionf("Crawl failed after recording %d page(s): %s", s.Recorded, s.Error)
	case s.Status == StatusCancelled:
		md.Warningf("Crawl was cancelled. %d claimed page(s) were not recorded.", s.Abandoned)
	case s.FailedFetches > 0:
		md.Note(fmt.Sprintf("%d page(s) could not be fetched and were recorded without links.", s.FailedFetches))
	default:
		md.Tip("Every reachable page was fetched and recorded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeHubs(md *markdown.Markdown, s *Summary) {
	if len(s.TopHubs) == 0 {
		return
	}

	md.H2("Top Pages by New Links")
	md.PlainText("")

	rows := make([][]string, len(s.TopHubs))
	for i, h := range s.TopHubs {
		rows[i] = []string{strconv.Itoa(i + 1), h.Label, strconv.Itoa(h.OutDegree), h.URL}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Page", "Links", "URL"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailed(md *markdown.Markdown, s *Summary) {
	if len(s.FailedPages) == 0 {
		return
	}

	md.H2("Failed Pages")
	md.PlainText("")
	md.BulletList(s.FailedPages...)
	if more := s.FailedFetches - len(s.FailedPages); more > 0 {
		md.PlainTextf("... and %d more", more)
	}
	md.PlainText("")
}
