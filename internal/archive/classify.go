package archive

import (
	"net/url"
	"path"
	"strings"
)

var extClasses = map[string]ResourceClass{
	"html": ClassHTML, "htm": ClassHTML, "php": ClassHTML, "asp": ClassHTML, "aspx": ClassHTML,
	"css": ClassCSS,
	"js":  ClassJS, "mjs": ClassJS,
	"png": ClassImage, "jpg": ClassImage, "jpeg": ClassImage, "gif": ClassImage,
	"svg": ClassImage, "webp": ClassImage, "bmp": ClassImage, "ico": ClassImage,
	"mp4": ClassVideo, "webm": ClassVideo, "ogg": ClassVideo, "mov": ClassVideo, "mkv": ClassVideo,
	"woff": ClassFont, "woff2": ClassFont, "ttf": ClassFont, "otf": ClassFont, "eot": ClassFont,
}

// Classify buckets a fetched resource. The content-type header is the
// primary signal, the URL's path extension the fallback; classes are
// checked in a fixed priority order.
func Classify(contentType, link string) ResourceClass {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext := pathExt(link)

	switch {
	case ct == "text/html" || extClasses[ext] == ClassHTML:
		return ClassHTML
	case ct == "text/css" || extClasses[ext] == ClassCSS:
		return ClassCSS
	case ct == "application/javascript" || ct == "text/javascript" || extClasses[ext] == ClassJS:
		return ClassJS
	case strings.HasPrefix(ct, "image/") || extClasses[ext] == ClassImage:
		return ClassImage
	case strings.HasPrefix(ct, "video/") || extClasses[ext] == ClassVideo:
		return ClassVideo
	case strings.HasPrefix(ct, "font/") || extClasses[ext] == ClassFont:
		return ClassFont
	default:
		return ClassOther
	}
}

func pathExt(link string) string {
	p := link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
}
