package models

import (
	"fmt"
	"time"
)

// ErrorKind classifies crawl and dispatch failures so callers can branch on
// the category without parsing messages.
type ErrorKind string

const (
	ErrorKindInvalidInput      ErrorKind = "invalid_input"
	ErrorKindNavigationTimeout ErrorKind = "navigation_timeout"
	ErrorKindScriptError       ErrorKind = "script_error"
	ErrorKindScreenshotError   ErrorKind = "screenshot_error"
	ErrorKindPdfError          ErrorKind = "pdf_error"
	ErrorKindStorageError      ErrorKind = "storage_error"
	ErrorKindSessionGone       ErrorKind = "session_gone"
	ErrorKindToolUnknown       ErrorKind = "tool_unknown"
	ErrorKindToolExecError     ErrorKind = "tool_exec_error"
	ErrorKindProviderError     ErrorKind = "provider_error"
	ErrorKindJobNotFound       ErrorKind = "job_not_found"
	ErrorKindFatal             ErrorKind = "fatal"
)

// MarkdownMode selects how much processing the markdown pipeline applies.
type MarkdownMode string

const (
	MarkdownModeNone     MarkdownMode = "none"
	MarkdownModeBasic    MarkdownMode = "basic"
	MarkdownModeEnhanced MarkdownMode = "enhanced"
)

// ScreenshotMode selects viewport or full-page capture.
type ScreenshotMode string

const (
	ScreenshotModeViewport ScreenshotMode = "viewport"
	ScreenshotModeFull     ScreenshotMode = "full"
)

// ResponseFormat controls how much of the result is returned to the caller.
type ResponseFormat string

const (
	ResponseFormatFull        ResponseFormat = "full"
	ResponseFormatContentOnly ResponseFormat = "content_only"
	ResponseFormatMinimal     ResponseFormat = "minimal"
	ResponseFormatLLM         ResponseFormat = "llm"
)

// FilterKind selects the post-markdown content filter.
type FilterKind string

const (
	FilterKindPruning FilterKind = "pruning"
	FilterKindBM25    FilterKind = "bm25"
)

// FilterOptions configures the enhanced markdown content filter.
type FilterOptions struct {
	Kind      FilterKind `json:"kind"`
	Threshold float64    `json:"threshold,omitempty"` // pruning: subtree score cutoff; bm25: relevance cutoff
	MinWords  int        `json:"min_words,omitempty"` // pruning: blocks shorter than this are dropped
	Query     string     `json:"query,omitempty"`     // bm25: relevance query
	Dynamic   bool       `json:"dynamic,omitempty"`   // pruning: scale threshold by tag/text/link ratios
}

// PDFMargin holds page margins in inches.
type PDFMargin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// PDFOptions configures page-to-PDF rendering.
type PDFOptions struct {
	Format          string    `json:"format,omitempty"` // "A4", "Letter", ...
	Landscape       bool      `json:"landscape,omitempty"`
	PrintBackground bool      `json:"print_background,omitempty"`
	Margin          PDFMargin `json:"margin,omitempty"`
	WaitForMs       int       `json:"wait_for_ms,omitempty"`
}

// CrawlOptions is the recognized option bag for a single crawl.
// Zero values mean "feature off" / "use default".
type CrawlOptions struct {
	JavaScript        bool           `json:"javascript,omitempty"`
	Screenshot        bool           `json:"screenshot,omitempty"`
	ScreenshotMode    ScreenshotMode `json:"screenshot_mode,omitempty"`
	PDF               bool           `json:"pdf,omitempty"`
	PDFOptions        *PDFOptions    `json:"pdf_options,omitempty"`
	MarkdownMode      MarkdownMode   `json:"markdown_extraction,omitempty"`
	Filter            *FilterOptions `json:"filter,omitempty"`
	OCRExtraction     bool           `json:"ocr_extraction,omitempty"`
	JavaScriptPayload string         `json:"javascript_payload,omitempty"`

	WaitBeforeScriptMs int `json:"wait_before_script_ms,omitempty"`
	WaitAfterScriptMs  int `json:"wait_after_script_ms,omitempty"`
	ScriptTimeoutMs    int `json:"script_timeout_ms,omitempty"`
	WaitMs             int `json:"wait_ms,omitempty"`
	TimeoutMs          int `json:"timeout_ms,omitempty"`

	Depth         int    `json:"depth,omitempty"`
	MaxPages      int    `json:"max_pages,omitempty"`
	FollowPattern string `json:"follow_pattern,omitempty"`

	ResponseFormat ResponseFormat `json:"response_format,omitempty"`
	ForceSync      bool           `json:"force_sync,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`

	// Post-crawl summarization knobs. Summarization is best-effort and never
	// fails the crawl.
	LLMProvider string `json:"llm_provider,omitempty"`
	LLMToken    string `json:"llm_token,omitempty"`
	LLMModel    string `json:"llm_model,omitempty"`

	// ContinueOnNavFailure keeps a batch alive when a single URL fails to
	// navigate; per-URL policy, set by the batch fan-out.
	ContinueOnNavFailure bool `json:"continue_on_nav_failure,omitempty"`
}

// CrawlRequest is the immutable unit of work handed to the dispatcher.
type CrawlRequest struct {
	URL       string       `json:"url"`
	URLs      []string     `json:"urls,omitempty"` // batch mode when len > 1
	Options   CrawlOptions `json:"options"`
	SessionID string       `json:"session_id,omitempty"`
	UserID    string       `json:"user_id,omitempty"`

	// StopOnFirstError aborts a batch at the first per-URL failure instead of
	// collecting failures and continuing.
	StopOnFirstError bool `json:"stop_on_first_error,omitempty"`
}

// IsBatch reports whether the request fans out over multiple URLs.
func (r *CrawlRequest) IsBatch() bool {
	return len(r.URLs) > 1
}

// Validate checks the request before dispatch.
func (r *CrawlRequest) Validate() error {
	if r.URL == "" && len(r.URLs) == 0 {
		return fmt.Errorf("request requires a url or a non-empty url list")
	}
	if r.Options.Depth < 0 {
		return fmt.Errorf("depth cannot be negative")
	}
	if r.Options.MaxPages < 0 {
		return fmt.Errorf("max_pages cannot be negative")
	}
	return nil
}

// ScriptResult is the outcome of an injected user script, produced by the
// execution harness.
type ScriptResult struct {
	Success     bool        `json:"success"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
	ExecutionMs int64       `json:"execution_ms"`
}

// CrawlResult is the tagged outcome of one crawl. success=false carries only
// the error fields; success=true carries url and title plus whichever
// artifacts the options enabled.
type CrawlResult struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Title   string `json:"title,omitempty"`

	HTML             string        `json:"html,omitempty"`
	Markdown         string        `json:"markdown,omitempty"`
	FilteredMarkdown string        `json:"filtered_markdown,omitempty"`
	ExtractedText    string        `json:"extracted_text,omitempty"`
	Summary          string        `json:"summary,omitempty"`
	Screenshot       []byte        `json:"screenshot,omitempty"`
	PDF              []byte        `json:"pdf,omitempty"`
	ScriptResult     *ScriptResult `json:"script_result,omitempty"`
	SessionID        string        `json:"session_id,omitempty"`

	// Per-artifact soft failures. The crawl succeeded; the named capture did
	// not.
	ScreenshotError string `json:"screenshot_error,omitempty"`
	PDFError        string `json:"pdf_error,omitempty"`
	StorageError    string `json:"storage_error,omitempty"`

	Artifacts []ArtifactReference `json:"artifacts,omitempty"`

	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`

	WordCount int           `json:"word_count,omitempty"`
	CharCount int           `json:"char_count,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// FailedCrawl builds a failure result for the given URL.
func FailedCrawl(url string, kind ErrorKind, err error) *CrawlResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &CrawlResult{
		Success:      false,
		URL:          url,
		ErrorKind:    kind,
		ErrorMessage: msg,
	}
}

// DispatchResponse is what the sync/async dispatcher hands back: either an
// inline result or a job handle.
type DispatchResponse struct {
	Async         bool         `json:"async"`
	Result        *CrawlResult `json:"result,omitempty"`
	JobID         string       `json:"job_id,omitempty"`
	Status        string       `json:"status,omitempty"`
	EstimatedTime float64      `json:"estimated_time,omitempty"` // seconds
	CheckURL      string       `json:"check_url,omitempty"`
}
