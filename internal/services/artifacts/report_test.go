package artifacts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/models"
)

func TestRenderMarkdownPDF(t *testing.T) {
	b := NewReportBuilder(arbor.NewLogger())

	pdf, err := b.RenderMarkdownPDF("# Title\n\nA paragraph with **bold** text.\n\n- item one\n- item two\n\n```\ncode line\n```\n")
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestRenderMarkdownPDFEmptyInput(t *testing.T) {
	b := NewReportBuilder(arbor.NewLogger())

	pdf, err := b.RenderMarkdownPDF("")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestBuildBatchReport(t *testing.T) {
	b := NewReportBuilder(arbor.NewLogger())

	batch := &models.BatchResult{
		Total:      2,
		Completed:  1,
		Failed:     1,
		TotalWords: 420,
		TotalTime:  3 * time.Second,
		Pages: []models.PageOutcome{
			{URL: "https://a.example", Success: true, Title: "A", WordCount: 420, Duration: time.Second},
			{URL: "https://b.example", Success: false, Error: "navigation timeout"},
		},
	}

	pdf, err := b.BuildBatchReport(batch, "Batch Crawl Report")
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestMergePDFs(t *testing.T) {
	b := NewReportBuilder(arbor.NewLogger())

	_, err := b.MergePDFs(nil)
	assert.Error(t, err, "empty input is rejected")

	single, err := b.RenderMarkdownPDF("# one")
	require.NoError(t, err)

	// single input passes through unchanged
	out, err := b.MergePDFs([][]byte{single})
	require.NoError(t, err)
	assert.Equal(t, single, out)

	other, err := b.RenderMarkdownPDF("# two")
	require.NoError(t, err)

	merged, err := b.MergePDFs([][]byte{single, other})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(merged[:4]))
	assert.Greater(t, len(merged), len(single), "merged document carries both inputs")
}

func TestMergePDFsSkipsInvalidInput(t *testing.T) {
	b := NewReportBuilder(arbor.NewLogger())

	valid, err := b.RenderMarkdownPDF("# page")
	require.NoError(t, err)

	merged, err := b.MergePDFs([][]byte{[]byte("not a pdf"), valid, valid})
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(merged[:4]))
}
