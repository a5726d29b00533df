package archive

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.FetchResource when no row matches.
var ErrNotFound = errors.New("resource not found")

// Store persists jobs and fetched resources.
type Store interface {
	// CreateJob inserts a new job row and returns its id.
	CreateJob(ctx context.Context) (int64, error)
	// StoreResource inserts one fetched resource and returns its id.
	// No dedup is performed; concurrent fetches of the same link within
	// a job produce two rows.
	StoreResource(ctx context.Context, res Resource) (int64, error)
	// FetchResource returns the stored resource for (jobID, link).
	// When duplicates exist the first row by insertion order is
	// returned. Misses yield ErrNotFound.
	FetchResource(ctx context.Context, jobID int64, link string) (StoredResource, error)
	// ListResources returns up to limit archived links of a job,
	// used by the replay 404 diagnostics.
	ListResources(ctx context.Context, jobID int64, limit int) ([]string, error)
}

// Fetcher performs a single HTTP GET with automatic redirect following.
type Fetcher interface {
	Get(ctx context.Context, url string) (FetchResponse, error)
}
