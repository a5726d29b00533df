package archive_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbaxter/webarc/internal/archive"
	collyfetcher "github.com/mbaxter/webarc/internal/fetcher/colly"
	"github.com/mbaxter/webarc/internal/storage/memory"
)

// TestSessionAgainstHTTPServer crawls a real HTTP fixture site through
// the Colly fetcher into the in-memory store.
func TestSessionAgainstHTTPServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
			<style>body { background: url(/bg.png); }</style>
		</head><body>
			<a href="/a">a</a>
			<a href="/b">b</a>
			<a href="https://offhost.example/x">away</a>
		</body></html>`))
	})
	mux.HandleFunc("/a", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<body><a href="/b">b again</a></body>`))
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<body>leaf</body>`))
	})
	mux.HandleFunc("/bg.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := memory.NewStore()
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: "webarc-test/0.1",
		Timeout:   5 * time.Second,
	})

	sess, err := archive.NewSession(store, fetcher, archive.SessionConfig{
		SeedURL:    srv.URL + "/",
		MaxPages:   20,
		NumWorkers: 3,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, sess.Run(context.Background()))

	ctx := context.Background()
	root, err := store.FetchResource(ctx, 1, srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, string(root.Content), `<a href="/a">`)
	assert.Contains(t, root.ContentType, "text/html")

	_, err = store.FetchResource(ctx, 1, srv.URL+"/a")
	assert.NoError(t, err)
	_, err = store.FetchResource(ctx, 1, srv.URL+"/b")
	assert.NoError(t, err)

	png, err := store.FetchResource(ctx, 1, srv.URL+"/bg.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", png.ContentType)

	links, err := store.ListResources(ctx, 1, 50)
	require.NoError(t, err)
	assert.Len(t, links, 4)
	assert.NotContains(t, links, "https://offhost.example/x")
}
