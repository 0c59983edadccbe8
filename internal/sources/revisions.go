package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	revisionWindow = 30 * 24 * time.Hour
	revisionLimit  = 100
)

// EditActivity summarises the recent revision history of a page. Pages that
// are being reverted back and forth are weaker support for a claim.
type EditActivity struct {
	RecentEdits   int
	Reverts       int
	UniqueEditors int
	EditsPerDay   float64
	Level         string // "", low, medium, high
}

// Contested reports whether the page shows an edit war
func (a EditActivity) Contested() bool {
	return a.Level == "medium" || a.Level == "high"
}

// discount is the factor applied to support confidence drawn from the page
func (a EditActivity) discount() float64 {
	switch a.Level {
	case "high":
		return 0.7
	case "medium":
		return 0.85
	default:
		return 1
	}
}

type revision struct {
	Timestamp string `json:"timestamp"`
	User      string `json:"user"`
	Comment   string `json:"comment"`
}

type revisionsResponse struct {
	Query struct {
		Pages map[string]struct {
			Revisions []revision `json:"revisions"`
		} `json:"pages"`
	} `json:"query"`
}

// editActivity fetches the last revisions of title and grades them
func (p *WikipediaProvider) editActivity(ctx context.Context, title string) (EditActivity, error) {
	q := url.Values{}
	q.Set("action", "query")
	q.Set("titles", title)
	q.Set("prop", "revisions")
	q.Set("rvlimit", fmt.Sprint(revisionLimit))
	q.Set("rvprop", "timestamp|user|comment")
	q.Set("format", "json")

	var resp revisionsResponse
	if err := p.fetcher.GetJSON(ctx, p.baseURL+"/w/api.php?"+q.Encode(), &resp); err != nil {
		return EditActivity{}, fmt.Errorf("wikipedia revisions: %w", err)
	}

	var revs []revision
	for _, page := range resp.Query.Pages {
		revs = page.Revisions
		break
	}
	return gradeRevisions(revs, p.now()), nil
}

// gradeRevisions counts recent edits, distinct editors and reverts.
// High: more than 10 recent edits with more than 3 reverts, or over 5 edits
// a day. Medium: more than 5 recent edits with more than 1 revert, or over
// 2 edits a day. Low: any revert.
func gradeRevisions(revs []revision, now time.Time) EditActivity {
	var a EditActivity
	cutoff := now.Add(-revisionWindow)
	editors := make(map[string]bool)
	var oldest time.Time

	for _, rev := range revs {
		if isRevert(rev.Comment) {
			a.Reverts++
		}
		t, err := time.Parse(time.RFC3339, rev.Timestamp)
		if err != nil || !t.After(cutoff) {
			continue
		}
		a.RecentEdits++
		editors[rev.User] = true
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	a.UniqueEditors = len(editors)

	if a.RecentEdits > 0 {
		// Floor of one day
		days := max(now.Sub(oldest).Hours()/24, 1)
		a.EditsPerDay = float64(a.RecentEdits) / days
	}

	switch {
	case (a.RecentEdits > 10 && a.Reverts > 3) || a.EditsPerDay > 5:
		a.Level = "high"
	case (a.RecentEdits > 5 && a.Reverts > 1) || a.EditsPerDay > 2:
		a.Level = "medium"
	case a.Reverts > 0:
		a.Level = "low"
	}
	return a
}

func isRevert(comment string) bool {
	c := strings.ToLower(comment)
	return strings.Contains(c, "revert") || strings.Contains(c, "rv ") ||
		strings.Contains(c, "undo") || strings.Contains(c, "undid")
}
