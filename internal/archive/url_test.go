package archive

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameHost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		host string
		want bool
	}{
		{"exact match", "https://a.com/x", "a.com", true},
		{"other host", "http://b.com", "a.com", false},
		{"case insensitive", "https://A.com", "a.com", true},
		{"http scheme ok", "http://a.com/page", "a.com", true},
		{"ftp rejected", "ftp://a.com/file", "a.com", false},
		{"mailto rejected", "mailto:x@a.com", "a.com", false},
		{"port is part of the authority", "https://a.com:443/x", "a.com", false},
		{"subdomain is a different host", "https://www.a.com", "a.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SameHost(tt.raw, tt.host))
		})
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	base, err := url.Parse("https://example.com/page")
	require.NoError(t, err)
	root, err := url.Parse("https://example.com/")
	require.NoError(t, err)

	got, ok := Resolve(base, "../style.css")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/style.css", got)

	got, ok = Resolve(root, "/contact#section")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/contact", got)

	// Off-host URLs resolve fine; filtering happens at the call site.
	got, ok = Resolve(root, "https://other.com/file.js")
	require.True(t, ok)
	assert.Equal(t, "https://other.com/file.js", got)

	_, ok = Resolve(root, "")
	assert.False(t, ok)
	_, ok = Resolve(root, "#section")
	assert.False(t, ok)
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", HostOf("https://Example.COM/page"))
	assert.Equal(t, "example.com:8080", HostOf("http://example.com:8080/"))
	assert.Equal(t, "", HostOf("://bad"))
}
