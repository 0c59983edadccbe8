package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

type mockVerifier struct {
	failOn string
}

func (m *mockVerifier) Verify(_ context.Context, req model.VerificationRequest) (*model.VerificationResult, error) {
	if m.failOn != "" && strings.Contains(req.Content.ExtractedText, m.failOn) {
		return nil, errors.New("verify failed")
	}
	return &model.VerificationResult{
		DocumentID:        req.Content.ID,
		Domain:            req.Domain,
		OverallConfidence: 100,
		RiskLevel:         model.SeverityLow,
	}, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBatchProcessor_ProcessFiles(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "All good here.")
	b := writeFile(t, dir, "b.json", `{"id":"contract-7","extractedText":"FAIL me"}`)
	c := filepath.Join(dir, "missing.txt")

	processor := NewBatchProcessor(&mockVerifier{failOn: "FAIL"}, 2, model.DomainLegal, model.UrgencyLow, "US")
	results := processor.ProcessFiles(context.Background(), []string{a, b, c})
	require.Len(t, results, 3)

	assert.Equal(t, a, results[0].Path)
	require.NoError(t, results[0].Error)
	assert.Equal(t, "a", results[0].Result.DocumentID)
	assert.Equal(t, model.DomainLegal, results[0].Result.Domain)

	assert.Equal(t, "contract-7", results[1].DocumentID)
	assert.Error(t, results[1].Error)

	assert.Error(t, results[2].Error)
}

func TestBatchProcessor_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockVerifier{}, 2, model.DomainLegal, "", "")
	assert.Empty(t, processor.ProcessFiles(context.Background(), nil))
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "docs.txt", "# comment\n\none.txt\n/abs/two.md\none.txt\n")

	paths, err := ReadManifest(manifest)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "one.txt"), "/abs/two.md"}, paths)

	_, err = ReadManifest(filepath.Join(dir, "nope.txt"))
	assert.Error(t, err)
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()

	md, err := LoadDocument(writeFile(t, dir, "policy.md", "# Policy\nText."))
	require.NoError(t, err)
	assert.Equal(t, "policy", md.ID)
	assert.Equal(t, "text/markdown", md.ContentType)
	assert.Equal(t, "# Policy\nText.", md.ExtractedText)

	js, err := LoadDocument(writeFile(t, dir, "doc.json", `{"extractedText":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "doc", js.ID)

	_, err = LoadDocument(writeFile(t, dir, "bad.json", `{`))
	assert.Error(t, err)
}
