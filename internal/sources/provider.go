// Package sources holds the external evidence providers a claim is checked
// against, and the authority classification applied to the URLs they cite.
package sources

import (
	"context"

	"github.com/ppiankov/veracity/internal/model"
)

// Provider is a pluggable evidence source. Query reports what the source
// says about a single claim; it must honour ctx cancellation.
type Provider interface {
	Name() string
	Query(ctx context.Context, claim string, domain model.Domain) (*model.SourceResult, error)
	IsAvailable(ctx context.Context) bool
}
