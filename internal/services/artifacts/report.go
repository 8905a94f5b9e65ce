package artifacts

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ReportBuilder renders batch summaries to PDF and merges per-URL PDFs
type ReportBuilder struct {
	logger arbor.ILogger
}

// NewReportBuilder creates a report builder
func NewReportBuilder(logger arbor.ILogger) *ReportBuilder {
	return &ReportBuilder{logger: logger}
}

// BuildBatchReport renders a one-document summary of a batch run
func (b *ReportBuilder) BuildBatchReport(batch *models.BatchResult, title string) ([]byte, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", title)
	fmt.Fprintf(&md, "Generated %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&md, "## Summary\n\n")
	fmt.Fprintf(&md, "- Total URLs: %d\n", batch.Total)
	fmt.Fprintf(&md, "- Completed: %d\n", batch.Completed)
	fmt.Fprintf(&md, "- Failed: %d\n", batch.Failed)
	fmt.Fprintf(&md, "- Total words: %d\n", batch.TotalWords)
	fmt.Fprintf(&md, "- Total characters: %d\n", batch.TotalChars)
	fmt.Fprintf(&md, "- Total time: %s\n", batch.TotalTime.Round(time.Millisecond))
	fmt.Fprintf(&md, "- Average time per URL: %s\n\n", batch.AverageTimePerURL.Round(time.Millisecond))

	fmt.Fprintf(&md, "## Pages\n\n")
	for _, page := range batch.Pages {
		if page.Success {
			fmt.Fprintf(&md, "- %s — %s (%d words, %s)\n",
				page.URL, page.Title, page.WordCount, page.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(&md, "- %s — FAILED: %s\n", page.URL, page.Error)
		}
	}

	return b.RenderMarkdownPDF(md.String())
}

// RenderMarkdownPDF renders markdown to a simple PDF document
func (b *ReportBuilder) RenderMarkdownPDF(markdown string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()
	pdf.SetFont("Arial", "", 10)

	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	r := &reportRenderer{pdf: pdf, source: source}
	if err := ast.Walk(doc, r.walk); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate report output: %w", err)
	}
	b.logger.Debug().Int("pdf_size", buf.Len()).Msg("Report PDF generated")
	return buf.Bytes(), nil
}

// MergePDFs concatenates per-URL page PDFs into one document and validates
// the merged output. pdfcpu's merge API is file based, so the inputs pass
// through a scratch directory.
func (b *ReportBuilder) MergePDFs(inputs [][]byte) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no pdfs to merge")
	}
	if len(inputs) == 1 {
		return inputs[0], nil
	}

	tmpDir, err := os.MkdirTemp("", "colligo-merge-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	conf := model.NewDefaultConfiguration()

	inFiles := make([]string, 0, len(inputs))
	for i, data := range inputs {
		path := filepath.Join(tmpDir, fmt.Sprintf("page_%03d.pdf", i))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to stage pdf %d: %w", i, err)
		}
		if err := api.ValidateFile(path, conf); err != nil {
			b.logger.Warn().Err(err).Int("index", i).Msg("Skipping invalid page PDF in merge")
			continue
		}
		inFiles = append(inFiles, path)
	}
	if len(inFiles) == 0 {
		return nil, fmt.Errorf("no valid pdfs to merge")
	}

	outFile := filepath.Join(tmpDir, "merged.pdf")
	if err := api.MergeCreateFile(inFiles, outFile, false, conf); err != nil {
		return nil, fmt.Errorf("failed to merge pdfs: %w", err)
	}

	merged, err := os.ReadFile(outFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged pdf: %w", err)
	}
	return merged, nil
}

// reportRenderer walks the goldmark AST and emits fpdf calls. Headings,
// paragraphs, emphasis, lists and code blocks cover what batch reports and
// collated summaries produce.
type reportRenderer struct {
	pdf    *fpdf.Fpdf
	source []byte
	bold   bool
	italic bool
	level  int
}

func (r *reportRenderer) style() string {
	s := ""
	if r.bold {
		s += "B"
	}
	if r.italic {
		s += "I"
	}
	return s
}

func (r *reportRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Heading:
		if entering {
			r.pdf.Ln(5)
			size := 15.0 - float64(node.Level)
			if size < 10 {
				size = 10
			}
			r.pdf.SetFont("Arial", "B", size)
		} else {
			r.pdf.Ln(6)
			r.pdf.SetFont("Arial", r.style(), 10)
		}
	case *ast.Paragraph:
		if !entering {
			r.pdf.Ln(6)
		}
	case *ast.Text:
		if entering {
			r.pdf.Write(5, string(node.Text(r.source)))
			if node.SoftLineBreak() || node.HardLineBreak() {
				r.pdf.Write(5, " ")
			}
		}
	case *ast.Emphasis:
		if node.Level == 2 {
			r.bold = entering
		} else {
			r.italic = entering
		}
		r.pdf.SetFont("Arial", r.style(), 10)
	case *ast.List:
		if entering {
			r.level++
		} else {
			r.level--
			if r.level == 0 {
				r.pdf.Ln(2)
			}
		}
	case *ast.ListItem:
		if entering {
			r.pdf.Ln(5)
			r.pdf.SetX(12 + float64(r.level)*4)
			r.pdf.Write(5, "- ")
		}
	case *ast.FencedCodeBlock:
		if entering {
			r.renderCode(node.Lines())
			return ast.WalkSkipChildren, nil
		}
	case *ast.CodeBlock:
		if entering {
			r.renderCode(node.Lines())
			return ast.WalkSkipChildren, nil
		}
	case *ast.ThematicBreak:
		if entering {
			r.pdf.Ln(3)
			r.pdf.Line(12, r.pdf.GetY(), 198, r.pdf.GetY())
			r.pdf.Ln(3)
		}
	}
	return ast.WalkContinue, nil
}

func (r *reportRenderer) renderCode(lines *text.Segments) {
	r.pdf.Ln(2)
	r.pdf.SetFont("Courier", "", 9)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		r.pdf.MultiCell(0, 5, string(segment.Value(r.source)), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.SetFont("Arial", r.style(), 10)
	r.pdf.Ln(2)
}
