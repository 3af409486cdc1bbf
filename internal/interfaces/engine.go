package interfaces

import (
	"context"

	"github.com/ternarybob/venor/internal/models"
)

// Engine is the uniform fetch+extract contract every adapter implements.
// Adapters return typed errors (models.ScrapeError) across this boundary
// and never panic through it.
type Engine interface {
	// Type identifies the adapter for routing and metrics.
	Type() models.EngineType

	// Probe performs an inexpensive reachability check with a short deadline.
	Probe(ctx context.Context, url string) bool

	// ListJobs traverses listing pages and returns absolute job detail URLs
	// plus the number of listing pages fetched. It stops when a page yields
	// no new URLs, maxPages is reached, or the next-page locator is absent.
	ListJobs(ctx context.Context, board *models.JobBoard, query, location string, maxPages int) ([]string, int, error)

	// ExtractJob fetches one detail page and applies selectors with their
	// fallback order. Returns nil when required fields are missing.
	ExtractJob(ctx context.Context, url string, selectors models.SelectorMap) (*models.RawJob, error)

	// Close releases adapter resources.
	Close() error
}
