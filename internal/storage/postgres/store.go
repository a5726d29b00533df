// Package postgres provides the Postgres-backed persistence layer.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mbaxter/webarc/internal/archive"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists jobs and archived resources in Postgres. All
// operations are single statements on short-lived pool acquisitions; no
// connection is held across a fetch.
type Store struct {
	pool dbPool
}

// New connects a Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing with pgxmock).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InitSchema creates the tables if they do not exist yet. There is
// deliberately no uniqueness constraint on (scraping_job, link):
// duplicate rows from concurrent discovery are kept, and reads take the
// first row by id.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS archive_jobs (
	id bigserial PRIMARY KEY,
	time_started timestamptz NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS archived_resource (
	id bigserial PRIMARY KEY,
	link text NOT NULL,
	host text NOT NULL,
	status_code int,
	content_type text,
	content bytea,
	content_length int,
	scraping_job bigint NOT NULL REFERENCES archive_jobs (id)
)`,
		`CREATE INDEX IF NOT EXISTS archived_resource_job_link_idx
	ON archived_resource (scraping_job, link)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// CreateJob inserts a new archive job and returns its id.
func (s *Store) CreateJob(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO archive_jobs (time_started) VALUES (CURRENT_TIMESTAMP) RETURNING id`,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	return id, nil
}

// StoreResource inserts one fetched resource and returns its id.
func (s *Store) StoreResource(ctx context.Context, res archive.Resource) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO archived_resource
	(link, host, status_code, content_type, content, content_length, scraping_job)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		res.Link,
		res.Host,
		res.StatusCode,
		res.ContentType,
		res.Content,
		res.ContentLength,
		res.JobID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert resource: %w", err)
	}
	return id, nil
}

// FetchResource returns the stored resource for (jobID, link). When
// duplicate rows exist the lowest id wins, deterministically.
func (s *Store) FetchResource(ctx context.Context, jobID int64, link string) (archive.StoredResource, error) {
	var res archive.StoredResource
	err := s.pool.QueryRow(ctx,
		`SELECT content, content_type, host
FROM archived_resource
WHERE scraping_job = $1 AND link = $2
ORDER BY id
LIMIT 1`,
		jobID, link,
	).Scan(&res.Content, &res.ContentType, &res.Host)
	if errors.Is(err, pgx.ErrNoRows) {
		return archive.StoredResource{}, archive.ErrNotFound
	}
	if err != nil {
		return archive.StoredResource{}, fmt.Errorf("select resource: %w", err)
	}
	return res, nil
}

// ListResources returns up to limit archived links of a job.
func (s *Store) ListResources(ctx context.Context, jobID int64, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT link FROM archived_resource WHERE scraping_job = $1 ORDER BY id LIMIT $2`,
		jobID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select links: %w", err)
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

// ListSites returns every archived host with its latest job.
func (s *Store) ListSites(ctx context.Context) ([]archive.SiteSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.host,
	max(j.time_started) AS latest_job_time,
	count(*) AS page_count,
	count(DISTINCT r.scraping_job) AS job_count
FROM archived_resource r
JOIN archive_jobs j ON j.id = r.scraping_job
GROUP BY r.host
ORDER BY latest_job_time DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select sites: %w", err)
	}
	defer rows.Close()

	var sites []archive.SiteSummary
	for rows.Next() {
		var site archive.SiteSummary
		if err := rows.Scan(&site.Host, &site.LatestJobTime, &site.PageCount, &site.JobCount); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

// ListJobs returns the archive jobs that touched a host.
func (s *Store) ListJobs(ctx context.Context, host string) ([]archive.JobSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT j.id, j.time_started, count(*) AS page_count
FROM archive_jobs j
JOIN archived_resource r ON r.scraping_job = j.id
WHERE r.host = $1
GROUP BY j.id, j.time_started
ORDER BY j.time_started DESC`,
		host,
	)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	var jobs []archive.JobSummary
	for rows.Next() {
		var job archive.JobSummary
		if err := rows.Scan(&job.ID, &job.TimeStarted, &job.PageCount); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// ListPages returns the archived resources of one job on one host,
// without bodies.
func (s *Store) ListPages(ctx context.Context, host string, jobID int64) ([]archive.PageSummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, link, host, status_code, content_type, content_length
FROM archived_resource
WHERE host = $1 AND scraping_job = $2
ORDER BY id`,
		host, jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	defer rows.Close()

	var pages []archive.PageSummary
	for rows.Next() {
		var page archive.PageSummary
		err := rows.Scan(
			&page.ID,
			&page.Link,
			&page.Host,
			&page.StatusCode,
			&page.ContentType,
			&page.ContentLength,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}
