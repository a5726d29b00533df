package replay

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RewriteHTML replaces same-host anchor/link hrefs and img/script srcs
// in a stored document with replay paths under the given job id.
// Off-host, data:, mailto:, javascript: and empty references are left
// untouched. Single-pass, attribute-level: inline CSS url(), srcset and
// script-injected references are not rewritten; the Referer fallback
// covers those at request time.
func RewriteHTML(htmlContent, originalHost string, jobID int64) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("a[href], link[href]").Each(func(_ int, sel *goquery.Selection) {
		abs, ok := absoluteForHost(originalHost, sel.AttrOr("href", ""))
		if !ok {
			return
		}
		kind := KindPage
		if goquery.NodeName(sel) == "link" {
			kind = linkRelKind(sel.AttrOr("rel", ""))
		}
		sel.SetAttr("href", EncodePath(jobID, abs, kind))
	})

	doc.Find("img[src], script[src]").Each(func(_ int, sel *goquery.Selection) {
		abs, ok := absoluteForHost(originalHost, sel.AttrOr("src", ""))
		if !ok {
			return
		}
		kind := KindJS
		if goquery.NodeName(sel) == "img" {
			kind = KindImage
		}
		sel.SetAttr("src", EncodePath(jobID, abs, kind))
	})

	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return out, nil
}

func linkRelKind(rel string) Kind {
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		switch r {
		case "stylesheet":
			return KindCSS
		case "icon", "apple-touch-icon":
			return KindImage
		}
	}
	return KindPage
}

// absoluteForHost resolves an attribute value to an absolute URL on the
// original host. Relative references are reconstructed against
// https://{host}; protocol-relative ones get https. Anything that does
// not land on the host reports ok=false.
func absoluteForHost(host, val string) (string, bool) {
	if val == "" {
		return "", false
	}
	for _, prefix := range []string{"#", "data:", "mailto:", "javascript:"} {
		if strings.HasPrefix(val, prefix) {
			return "", false
		}
	}

	var raw string
	switch {
	case strings.HasPrefix(val, "//"):
		raw = "https:" + val
	case strings.HasPrefix(val, "http://"), strings.HasPrefix(val, "https://"):
		raw = val
	case strings.HasPrefix(val, "/"):
		raw = "https://" + host + val
	default:
		raw = "https://" + host + "/" + val
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !strings.EqualFold(u.Hostname(), host) {
		return "", false
	}
	return u.String(), true
}
