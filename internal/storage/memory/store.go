// Package memory provides an in-memory Store for tests and local
// development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mbaxter/webarc/internal/archive"
)

// Store keeps jobs and resources in process memory. Insertion order is
// preserved, so duplicate links resolve to the first write like the
// Postgres store.
type Store struct {
	mu        sync.Mutex
	nextJobID int64
	nextResID int64
	jobs      map[int64]archive.Job
	resources []archive.Resource
}

// NewStore builds an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[int64]archive.Job)}
}

// CreateJob assigns the next job id.
func (s *Store) CreateJob(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextJobID++
	s.jobs[s.nextJobID] = archive.Job{ID: s.nextJobID, StartedAt: time.Now()}
	return s.nextJobID, nil
}

// StoreResource appends a resource row.
func (s *Store) StoreResource(_ context.Context, res archive.Resource) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextResID++
	res.ID = s.nextResID
	s.resources = append(s.resources, res)
	return res.ID, nil
}

// FetchResource returns the first matching row for (jobID, link).
func (s *Store) FetchResource(_ context.Context, jobID int64, link string) (archive.StoredResource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.resources {
		if res.JobID == jobID && res.Link == link {
			return archive.StoredResource{
				Content:     res.Content,
				ContentType: res.ContentType,
				Host:        res.Host,
			}, nil
		}
	}
	return archive.StoredResource{}, archive.ErrNotFound
}

// ListResources returns up to limit links archived under a job.
func (s *Store) ListResources(_ context.Context, jobID int64, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var links []string
	for _, res := range s.resources {
		if res.JobID != jobID {
			continue
		}
		links = append(links, res.Link)
		if len(links) >= limit {
			break
		}
	}
	return links, nil
}

// ListSites aggregates archived hosts.
func (s *Store) ListSites(_ context.Context) ([]archive.SiteSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byHost := make(map[string]*archive.SiteSummary)
	jobsByHost := make(map[string]map[int64]struct{})
	for _, res := range s.resources {
		site, ok := byHost[res.Host]
		if !ok {
			site = &archive.SiteSummary{Host: res.Host}
			byHost[res.Host] = site
			jobsByHost[res.Host] = make(map[int64]struct{})
		}
		site.PageCount++
		jobsByHost[res.Host][res.JobID] = struct{}{}
		if job, ok := s.jobs[res.JobID]; ok && job.StartedAt.After(site.LatestJobTime) {
			site.LatestJobTime = job.StartedAt
		}
	}
	var sites []archive.SiteSummary
	for host, site := range byHost {
		site.JobCount = len(jobsByHost[host])
		sites = append(sites, *site)
	}
	sort.Slice(sites, func(i, j int) bool {
		return sites[i].LatestJobTime.After(sites[j].LatestJobTime)
	})
	return sites, nil
}

// ListJobs returns the jobs that archived resources for a host.
func (s *Store) ListJobs(_ context.Context, host string) ([]archive.JobSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int64]int)
	for _, res := range s.resources {
		if res.Host == host {
			counts[res.JobID]++
		}
	}
	var jobs []archive.JobSummary
	for id, count := range counts {
		jobs = append(jobs, archive.JobSummary{
			ID:          id,
			TimeStarted: s.jobs[id].StartedAt,
			PageCount:   count,
		})
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].TimeStarted.After(jobs[j].TimeStarted)
	})
	return jobs, nil
}

// ListPages returns resource metadata for one job on one host.
func (s *Store) ListPages(_ context.Context, host string, jobID int64) ([]archive.PageSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var pages []archive.PageSummary
	for _, res := range s.resources {
		if res.Host != host || res.JobID != jobID {
			continue
		}
		pages = append(pages, archive.PageSummary{
			ID:            res.ID,
			Link:          res.Link,
			Host:          res.Host,
			StatusCode:    res.StatusCode,
			ContentType:   res.ContentType,
			ContentLength: res.ContentLength,
		})
	}
	return pages, nil
}
