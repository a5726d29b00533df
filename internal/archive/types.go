package archive

import (
	"net/http"
	"time"
)

// ResourceClass buckets fetched content for rewrite-time decisions.
type ResourceClass string

// Resource classes recognized by the crawler.
const (
	ClassHTML  ResourceClass = "html"
	ClassCSS   ResourceClass = "css"
	ClassJS    ResourceClass = "js"
	ClassImage ResourceClass = "image"
	ClassVideo ResourceClass = "video"
	ClassFont  ResourceClass = "font"
	ClassOther ResourceClass = "other"
)

// Job is one crawl run. Its store-assigned id is the public handle
// embedded in every replay path.
type Job struct {
	ID        int64
	StartedAt time.Time
}

// Resource is one persisted fetch result. One row per successful fetch
// attempt; duplicate links within a job are possible and kept.
type Resource struct {
	ID            int64
	JobID         int64
	Link          string
	Host          string
	StatusCode    int
	ContentType   string
	Content       []byte
	ContentLength int
}

// StoredResource is the read-side projection used by the replay engine.
type StoredResource struct {
	Content     []byte
	ContentType string
	Host        string
}

// FetchResponse is the fixed shape produced by the fetch collaborator
// after redirect following.
type FetchResponse struct {
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Text       string
}

// Outcome describes how a single crawl task ended.
type Outcome string

// Task outcomes. Consumed for logging and metrics only; no control flow
// depends on the distinction.
const (
	OutcomeArchived Outcome = "archived"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result is the per-task outcome value produced by a worker.
type Result struct {
	URL     string
	Outcome Outcome
	Class   ResourceClass
	Reason  string
	Err     error
}

// SiteSummary aggregates archived data per host for listing endpoints.
type SiteSummary struct {
	Host          string    `json:"host"`
	LatestJobTime time.Time `json:"latest_job_time"`
	PageCount     int       `json:"page_count"`
	JobCount      int       `json:"job_count"`
}

// JobSummary describes one archive job of a host.
type JobSummary struct {
	ID          int64     `json:"id"`
	TimeStarted time.Time `json:"time_started"`
	PageCount   int       `json:"page_count"`
}

// PageSummary describes one archived resource without its body.
type PageSummary struct {
	ID            int64  `json:"id"`
	Link          string `json:"link"`
	Host          string `json:"host"`
	StatusCode    int    `json:"status_code"`
	ContentType   string `json:"content_type"`
	ContentLength int    `json:"content_length"`
}
