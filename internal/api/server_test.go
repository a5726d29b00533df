package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbaxter/webarc/internal/archive"
	"github.com/mbaxter/webarc/internal/config"
)

type resourceKey struct {
	jobID int64
	link  string
}

type stubStore struct {
	resources map[resourceKey]archive.StoredResource
	links     []string
	listErr   error
	fetchErr  error

	sites []archive.SiteSummary
	jobs  []archive.JobSummary
	pages []archive.PageSummary
}

func (s *stubStore) CreateJob(context.Context) (int64, error) { return 1, nil }

func (s *stubStore) StoreResource(context.Context, archive.Resource) (int64, error) {
	return 1, nil
}

func (s *stubStore) FetchResource(_ context.Context, jobID int64, link string) (archive.StoredResource, error) {
	if s.fetchErr != nil {
		return archive.StoredResource{}, s.fetchErr
	}
	res, ok := s.resources[resourceKey{jobID, link}]
	if !ok {
		return archive.StoredResource{}, archive.ErrNotFound
	}
	return res, nil
}

func (s *stubStore) ListResources(context.Context, int64, int) ([]string, error) {
	return s.links, s.listErr
}

func (s *stubStore) ListSites(context.Context) ([]archive.SiteSummary, error) {
	return s.sites, nil
}

func (s *stubStore) ListJobs(context.Context, string) ([]archive.JobSummary, error) {
	return s.jobs, nil
}

func (s *stubStore) ListPages(context.Context, string, int64) ([]archive.PageSummary, error) {
	return s.pages, nil
}

type stubScheduler struct {
	got archive.SessionConfig
	err error
}

func (s *stubScheduler) Schedule(cfg archive.SessionConfig) error {
	s.got = cfg
	return s.err
}

func testConfig() config.Config {
	return config.Config{
		Archive: config.ArchiveConfig{
			MaxPagesDefault:   25,
			NumWorkersDefault: 8,
		},
	}
}

func newTestServer(store *stubStore, sched *stubScheduler) *Server {
	if store.resources == nil {
		store.resources = make(map[resourceKey]archive.StoredResource)
	}
	return NewServer(store, sched, testConfig(), nil)
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubStore{}, &stubScheduler{})
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestTriggerArchiveDefaults(t *testing.T) {
	t.Parallel()

	sched := &stubScheduler{}
	s := newTestServer(&stubStore{}, sched)

	body := bytes.NewBufferString(`{"url": "https://x.com/"}`)
	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/archive", body))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "https://x.com/", sched.got.SeedURL)
	assert.Equal(t, 25, sched.got.MaxPages)
	assert.Equal(t, 8, sched.got.NumWorkers)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "scheduled", resp["status"])
}

func TestTriggerArchiveOverrides(t *testing.T) {
	t.Parallel()

	sched := &stubScheduler{}
	s := newTestServer(&stubStore{}, sched)

	body := bytes.NewBufferString(`{"url": "https://x.com/", "max_pages": 3, "num_workers": 2}`)
	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/archive", body))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 3, sched.got.MaxPages)
	assert.Equal(t, 2, sched.got.NumWorkers)
}

func TestTriggerArchiveBadRequests(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubStore{}, &stubScheduler{})

	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/archive",
		bytes.NewBufferString(`{not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(s, httptest.NewRequest(http.MethodPost, "/archive",
		bytes.NewBufferString(`{"max_pages": 3}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "url required")
}

func TestTriggerArchiveScheduleFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubStore{}, &stubScheduler{err: errors.New("bad seed")})
	rec := doRequest(s, httptest.NewRequest(http.MethodPost, "/archive",
		bytes.NewBufferString(`{"url": "https://x.com/"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "archive failed to schedule")
}

func TestReplayServesRewrittenHTML(t *testing.T) {
	t.Parallel()

	store := &stubStore{resources: map[resourceKey]archive.StoredResource{
		{5, "https://x.com/"}: {
			Content:     []byte(`<body><a href="/about">about</a></body>`),
			ContentType: "text/html; charset=utf-8",
			Host:        "x.com",
		},
	}}
	s := newTestServer(store, &stubScheduler{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/web/5/https%3A%2F%2Fx.com%2F", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `href="/web/5/https%3A%2F%2Fx.com%2Fabout"`)
}

func TestReplayServesAssetRaw(t *testing.T) {
	t.Parallel()

	png := []byte{0x89, 'P', 'N', 'G'}
	store := &stubStore{resources: map[resourceKey]archive.StoredResource{
		{5, "https://x.com/logo.png"}: {Content: png, ContentType: "image/png", Host: "x.com"},
	}}
	s := newTestServer(store, &stubScheduler{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/web/5im_/https%3A%2F%2Fx.com%2Flogo.png", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestReplayBadPaths(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubStore{}, &stubScheduler{})

	// Job segment without leading digits.
	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/web/abc/https%3A%2F%2Fx.com%2F", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Decoded target is not an absolute URL.
	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/web/5/notaurl", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplayMissIncludesAvailableLinks(t *testing.T) {
	t.Parallel()

	store := &stubStore{links: []string{"https://x.com/", "https://x.com/a"}}
	s := newTestServer(store, &stubScheduler{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/web/5/https%3A%2F%2Fx.com%2Fgone", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var payload struct {
		Error     string   `json:"error"`
		Available []string `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Contains(t, payload.Error, "https://x.com/gone")
	assert.Equal(t, []string{"https://x.com/", "https://x.com/a"}, payload.Available)
}

func TestReplayMissToleratesListingFailure(t *testing.T) {
	t.Parallel()

	store := &stubStore{listErr: errors.New("db gone")}
	s := newTestServer(store, &stubScheduler{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/web/5/https%3A%2F%2Fx.com%2Fgone", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "available")
}

func TestReplayStoreFailure(t *testing.T) {
	t.Parallel()

	store := &stubStore{fetchErr: errors.New("connection reset")}
	s := newTestServer(store, &stubScheduler{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet,
		"/web/5/https%3A%2F%2Fx.com%2F", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRefererFallback(t *testing.T) {
	t.Parallel()

	store := &stubStore{resources: map[resourceKey]archive.StoredResource{
		{5, "https://x.com/style.css"}: {
			Content:     []byte("body { color: red; }"),
			ContentType: "text/css",
			Host:        "x.com",
		},
	}}
	s := newTestServer(store, &stubScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/style.css", nil)
	req.Header.Set("Referer", "http://localhost:8080/web/5/https%3A%2F%2Fx.com%2F")
	rec := doRequest(s, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/css", rec.Header().Get("Content-Type"))
	assert.Equal(t, "body { color: red; }", rec.Body.String())
}

func TestRefererFallbackWithoutReferer(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubStore{}, &stubScheduler{})
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListingEndpoints(t *testing.T) {
	t.Parallel()

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &stubStore{
		sites: []archive.SiteSummary{
			{Host: "x.com", LatestJobTime: started, PageCount: 14, JobCount: 2},
		},
		jobs: []archive.JobSummary{
			{ID: 7, TimeStarted: started, PageCount: 14},
		},
		pages: []archive.PageSummary{
			{ID: 1, Link: "https://x.com/", Host: "x.com", StatusCode: 200, ContentType: "text/html", ContentLength: 128},
		},
	}
	s := newTestServer(store, &stubScheduler{})

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/archived-sites", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"host":"x.com"`)
	assert.Contains(t, rec.Body.String(), `"page_count":14`)

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/archived-sites/x.com/jobs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":7`)

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/archived-sites/x.com/jobs/7/pages", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"link":"https://x.com/"`)

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/archived-sites/x.com/jobs/seven/pages", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListingEndpointsEmpty(t *testing.T) {
	t.Parallel()

	s := newTestServer(&stubStore{}, &stubScheduler{})
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/archived-sites", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
