package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// Verifier runs the verification pipeline on a single request
type Verifier interface {
	Verify(ctx context.Context, req model.VerificationRequest) (*model.VerificationResult, error)
}

// DocumentJob verifies one document file
type DocumentJob struct {
	Path         string
	Domain       model.Domain
	Urgency      model.Urgency
	Jurisdiction string
	Verifier     Verifier
}

// Execute loads the document and verifies it
func (j *DocumentJob) Execute(ctx context.Context) Result {
	content, err := LoadDocument(j.Path)
	if err != nil {
		return &DocumentResult{Path: j.Path, Error: err}
	}

	result, err := j.Verifier.Verify(ctx, model.VerificationRequest{
		Content:      content,
		Domain:       j.Domain,
		Urgency:      j.Urgency,
		Jurisdiction: j.Jurisdiction,
	})
	return &DocumentResult{Path: j.Path, DocumentID: content.ID, Result: result, Error: err}
}

// DocumentResult is the outcome of a DocumentJob
type DocumentResult struct {
	Path       string
	DocumentID string
	Result     *model.VerificationResult
	Error      error
}

func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies many documents concurrently
type BatchProcessor struct {
	verifier     Verifier
	concurrency  int
	domain       model.Domain
	urgency      model.Urgency
	jurisdiction string
}

// NewBatchProcessor creates a batch processor; every document is verified
// under the same domain, urgency, and jurisdiction
func NewBatchProcessor(v Verifier, concurrency int, domain model.Domain, urgency model.Urgency, jurisdiction string) *BatchProcessor {
	return &BatchProcessor{
		verifier:     v,
		concurrency:  concurrency,
		domain:       domain,
		urgency:      urgency,
		jurisdiction: jurisdiction,
	}
}

// ProcessFiles verifies the given documents and returns one result per path,
// in input order
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*DocumentResult {
	if len(paths) == 0 {
		return []*DocumentResult{}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&DocumentJob{
			Path:         path,
			Domain:       b.domain,
			Urgency:      b.urgency,
			Jurisdiction: b.jurisdiction,
			Verifier:     b.verifier,
		})
	}

	byPath := make(map[string]*DocumentResult, len(paths))
	for _, r := range pool.Wait() {
		if dr, ok := r.(*DocumentResult); ok {
			byPath[dr.Path] = dr
		}
	}

	out := make([]*DocumentResult, len(paths))
	for i, path := range paths {
		if dr, ok := byPath[path]; ok {
			out[i] = dr
			continue
		}
		out[i] = &DocumentResult{Path: path, Error: fmt.Errorf("not processed: %w", context.Cause(ctx))}
	}
	return out
}

// ProcessManifest reads document paths from a manifest file and verifies them
func (b *BatchProcessor) ProcessManifest(ctx context.Context, manifest string) ([]*DocumentResult, error) {
	paths, err := ReadManifest(manifest)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return b.ProcessFiles(ctx, paths), nil
}

// ReadManifest reads one document path per line. Blank lines and lines
// starting with # are skipped; relative paths resolve against the manifest's
// directory; duplicates are dropped.
func ReadManifest(manifest string) ([]string, error) {
	file, err := os.Open(manifest)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(manifest)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}
	return paths, nil
}

// LoadDocument reads a document from disk. JSON files are decoded as
// ParsedContent; anything else is treated as already-extracted plain text.
func LoadDocument(path string) (model.ParsedContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ParsedContent{}, fmt.Errorf("read document: %w", err)
	}

	name := filepath.Base(path)
	id := strings.TrimSuffix(name, filepath.Ext(name))

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var content model.ParsedContent
		if err := json.Unmarshal(data, &content); err != nil {
			return model.ParsedContent{}, fmt.Errorf("decode %s: %w", name, err)
		}
		if content.ID == "" {
			content.ID = id
		}
		return content, nil
	}

	contentType := "text/plain"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".md" || ext == ".markdown" {
		contentType = "text/markdown"
	}
	return model.ParsedContent{
		ID:            id,
		ExtractedText: string(data),
		ContentType:   contentType,
		Metadata:      map[string]string{"path": path},
	}, nil
}
