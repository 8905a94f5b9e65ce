package models

// ArtifactKind names the output file types a crawl can produce.
type ArtifactKind string

const (
	ArtifactKindMarkdown   ArtifactKind = "markdown"
	ArtifactKindJSON       ArtifactKind = "json"
	ArtifactKindHTML       ArtifactKind = "html"
	ArtifactKindScreenshot ArtifactKind = "screenshot"
	ArtifactKindPDF        ArtifactKind = "pdf"
)

// ArtifactReference points at a stored crawl output. Filenames are
// deterministic for a given (url, title, extension), so re-crawling the same
// page overwrites the same object.
type ArtifactReference struct {
	Kind         ArtifactKind `json:"kind,omitempty"`
	Filename     string       `json:"filename"`
	StoragePath  string       `json:"storage_path"`
	RetrievalURL string       `json:"retrieval_url"`
	SizeBytes    int          `json:"size_bytes,omitempty"`
}
