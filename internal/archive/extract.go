package archive

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// cssURLPattern matches url(...) references in CSS text. RE2 has no
// lookahead, so data: and about: schemes are filtered after matching.
var cssURLPattern = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]+?)['"]?\s*\)`)

const srcSelectors = "img[src], script[src], iframe[src], embed[src], audio[src], video[src], source[src], track[src]"

// ExtractLinks parses an HTML document and returns the same-host page
// and asset URL sets, absolute and fragment-stripped. A parse failure
// returns two empty sets; the page is still archived raw.
func ExtractLinks(htmlText string, base *url.URL) (pages, assets map[string]struct{}) {
	pages = make(map[string]struct{})
	assets = make(map[string]struct{})

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return pages, assets
	}

	host := strings.ToLower(base.Host)
	effBase := base
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := base.Parse(strings.TrimSpace(href)); err == nil {
			effBase = resolved
		}
	}

	add := func(set map[string]struct{}, ref string) {
		abs, ok := Resolve(effBase, ref)
		if !ok || !SameHost(abs, host) {
			return
		}
		set[abs] = struct{}{}
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		add(pages, sel.AttrOr("href", ""))
	})

	doc.Find(srcSelectors).Each(func(_ int, sel *goquery.Selection) {
		add(assets, sel.AttrOr("src", ""))
	})
	doc.Find("video[poster]").Each(func(_ int, sel *goquery.Selection) {
		add(assets, sel.AttrOr("poster", ""))
	})
	// Stylesheets, icons, preloads; the kind only matters at rewrite time.
	doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
		add(assets, sel.AttrOr("href", ""))
	})

	doc.Find("img[srcset], source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		for _, cand := range strings.Split(sel.AttrOr("srcset", ""), ",") {
			fields := strings.Fields(cand)
			if len(fields) > 0 {
				add(assets, fields[0])
			}
		}
	})

	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		for _, ref := range cssURLs(sel.AttrOr("style", "")) {
			add(assets, ref)
		}
	})
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		for _, ref := range cssURLs(sel.Text()) {
			add(assets, ref)
		}
	})

	// A URL that is both an anchor target and an asset reference is a
	// page, not an asset.
	for p := range pages {
		delete(assets, p)
	}
	return pages, assets
}

func cssURLs(cssText string) []string {
	var out []string
	for _, m := range cssURLPattern.FindAllStringSubmatch(cssText, -1) {
		ref := strings.TrimSpace(m[1])
		lower := strings.ToLower(ref)
		if strings.HasPrefix(lower, "data:") || strings.HasPrefix(lower, "about:") {
			continue
		}
		out = append(out, ref)
	}
	return out
}
