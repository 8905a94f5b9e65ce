package artifacts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Writer persists crawl outputs through the blob interface. It owns write
// access to artifact paths: filenames are deterministic per (url, title,
// extension) and live under the caller's user bucket.
type Writer struct {
	store  interfaces.BlobStorage
	logger arbor.ILogger
}

// NewWriter creates an artifact writer over the given blob store
func NewWriter(store interfaces.BlobStorage, logger arbor.ILogger) *Writer {
	return &Writer{store: store, logger: logger}
}

var _ interfaces.ArtifactWriter = (*Writer)(nil)

type pendingArtifact struct {
	kind models.ArtifactKind
	ext  string
	data []byte
}

// Write stores every artifact present on the result and returns the
// references. Writes run concurrently but all complete before return. A
// failed write is recorded on the result's StorageError and does not stop
// the remaining artifacts.
func (w *Writer) Write(ctx context.Context, userID string, result *models.CrawlResult) []models.ArtifactReference {
	if result == nil || !result.Success {
		return nil
	}

	var pending []pendingArtifact
	if result.Markdown != "" {
		content := result.Markdown
		if result.FilteredMarkdown != "" {
			content = result.FilteredMarkdown
		}
		pending = append(pending, pendingArtifact{models.ArtifactKindMarkdown, "md", []byte(content)})
	}
	if result.HTML != "" {
		pending = append(pending, pendingArtifact{models.ArtifactKindHTML, "html", []byte(result.HTML)})
	}
	if len(result.Screenshot) > 0 {
		pending = append(pending, pendingArtifact{models.ArtifactKindScreenshot, "png", result.Screenshot})
	}
	if len(result.PDF) > 0 {
		pending = append(pending, pendingArtifact{models.ArtifactKindPDF, "pdf", result.PDF})
	}
	if dump := w.resultDump(result); dump != nil {
		pending = append(pending, pendingArtifact{models.ArtifactKindJSON, "json", dump})
	}

	bucket := common.UserBucket(userID)

	var mu sync.Mutex
	var refs []models.ArtifactReference
	var storageErrs []string

	var wg sync.WaitGroup
	for _, artifact := range pending {
		wg.Add(1)
		go func(a pendingArtifact) {
			defer wg.Done()

			filename := common.ArtifactFilename(result.URL, result.Title, a.ext)
			path := bucket + "/" + filename

			if err := w.store.Save(ctx, path, a.data); err != nil {
				w.logger.Warn().Err(err).Str("path", path).Msg("Failed to save artifact")
				mu.Lock()
				storageErrs = append(storageErrs, fmt.Sprintf("%s: %v", a.kind, err))
				mu.Unlock()
				return
			}

			mu.Lock()
			refs = append(refs, models.ArtifactReference{
				Kind:         a.kind,
				Filename:     filename,
				StoragePath:  path,
				RetrievalURL: w.store.SignedURL(path),
				SizeBytes:    len(a.data),
			})
			mu.Unlock()
		}(artifact)
	}
	wg.Wait()

	if len(storageErrs) > 0 {
		result.StorageError = strings.Join(storageErrs, "; ")
	}
	return refs
}

// Read fetches a previously written artifact from the caller's bucket
func (w *Writer) Read(ctx context.Context, userID, filename string) ([]byte, error) {
	path := common.UserBucket(userID) + "/" + filename
	return w.store.Get(ctx, path)
}

// Store exposes the underlying blob store for collation
func (w *Writer) Store() interfaces.BlobStorage {
	return w.store
}

// resultDump serializes the result without the raw binary payloads, which
// are stored as their own artifacts.
func (w *Writer) resultDump(result *models.CrawlResult) []byte {
	dump := *result
	dump.Screenshot = nil
	dump.PDF = nil
	dump.Artifacts = nil

	data, err := json.MarshalIndent(&dump, "", "  ")
	if err != nil {
		w.logger.Warn().Err(err).Str("url", result.URL).Msg("Failed to marshal result dump")
		return nil
	}
	return data
}
