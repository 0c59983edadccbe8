package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veracity/internal/model"
)

var revisionNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func makeRevisions(n, reverts int, spacing time.Duration) []revision {
	revs := make([]revision, n)
	for i := range revs {
		revs[i] = revision{
			Timestamp: revisionNow.Add(-time.Duration(i+1) * spacing).Format(time.RFC3339),
			User:      fmt.Sprintf("editor-%d", i%4),
			Comment:   "copyedit",
		}
		if i < reverts {
			revs[i].Comment = "Reverted edits by vandal"
		}
	}
	return revs
}

func TestGradeRevisions(t *testing.T) {
	tests := []struct {
		name  string
		revs  []revision
		level string
	}{
		{"no history", nil, ""},
		{"quiet page", makeRevisions(3, 0, 5*24*time.Hour), ""},
		{"single revert", makeRevisions(3, 1, 5*24*time.Hour), "low"},
		{"moderate dispute", makeRevisions(7, 2, 3*24*time.Hour), "medium"},
		{"edit war", makeRevisions(12, 4, 2*24*time.Hour), "high"},
		{"burst of edits", makeRevisions(20, 0, time.Hour), "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := gradeRevisions(tt.revs, revisionNow)
			assert.Equal(t, tt.level, a.Level)
			assert.Equal(t, tt.level == "medium" || tt.level == "high", a.Contested())
		})
	}
}

func TestGradeRevisions_IgnoresOldEdits(t *testing.T) {
	revs := makeRevisions(12, 0, 10*24*time.Hour)
	a := gradeRevisions(revs, revisionNow)
	assert.Equal(t, 2, a.RecentEdits)
	assert.Equal(t, 2, a.UniqueEditors)
	assert.Empty(t, a.Level)
}

func TestWikipediaProvider_ContestedPageLowersSupport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("list") == "search":
			_ = json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"search": []map[string]any{
				{"title": "Borscht", "pageid": 7, "snippet": "Borscht is a sour soup common in Eastern Europe"},
			}}})
		case q.Get("prop") == "revisions":
			assert.Equal(t, "Borscht", q.Get("titles"))
			_ = json.NewEncoder(w).Encode(map[string]any{"query": map[string]any{"pages": map[string]any{
				"7": map[string]any{"revisions": makeRevisions(12, 5, 2*24*time.Hour)},
			}}})
		default:
			_, _ = w.Write([]byte(`{}`))
		}
	}))
	defer server.Close()

	p := NewWikipediaProvider(server.URL, testFetcher(), NewClassifier(model.DefaultConfig().Sources))
	p.now = func() time.Time { return revisionNow }

	res, err := p.Query(context.Background(), "Borscht is a sour soup common in Eastern Europe", model.DomainLegal)
	require.NoError(t, err)
	assert.True(t, res.IsSupported)
	assert.InDelta(t, 90*0.7, res.Confidence, 0.01)
	require.Len(t, res.Evidence, 2)
	assert.Contains(t, res.Evidence[1], "under active dispute")
}
