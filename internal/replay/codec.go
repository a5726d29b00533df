// Package replay reconstructs browsable archived pages: it encodes and
// decodes wayback-style paths, rewrites stored HTML to point back into
// the archive, and recovers context from Referer headers for requests
// that bypassed rewritten links.
package replay

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Kind is the referencing context of a rewritten link. It drives the
// path modifier, not the stored content's actual type.
type Kind int

// Referencing contexts.
const (
	KindPage Kind = iota
	KindImage
	KindCSS
	KindJS
)

// Modifier returns the path modifier for the kind.
func (k Kind) Modifier() string {
	switch k {
	case KindImage:
		return "im_"
	case KindCSS:
		return "cs_"
	case KindJS:
		return "js_"
	default:
		return ""
	}
}

// jobSegmentPattern accepts a leading digit run plus an optional
// modifier; trailing garbage after the modifier is ignored.
var jobSegmentPattern = regexp.MustCompile(`^(\d+)([a-z_]+)?`)

// Decoded is the result of parsing a replay path.
type Decoded struct {
	JobID    int64
	Modifier string
	URL      string
}

// EncodePath builds the replay path /web/{jobId}{modifier}/{encodedUrl}
// for an absolute URL under the given referencing context.
func EncodePath(jobID int64, absURL string, kind Kind) string {
	return fmt.Sprintf("/web/%d%s/%s", jobID, kind.Modifier(), escapeAll(absURL))
}

// DecodePath parses the {jobId}{modifier} segment and percent-decodes
// the remainder into the absolute target URL. The modifier is accepted
// syntactically but plays no role in lookup.
func DecodePath(jobAndMod, encodedURL string) (Decoded, error) {
	m := jobSegmentPattern.FindStringSubmatch(jobAndMod)
	if m == nil {
		return Decoded{}, fmt.Errorf("invalid job segment %q", jobAndMod)
	}
	jobID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Decoded{}, fmt.Errorf("parse job id: %w", err)
	}

	target, err := url.PathUnescape(encodedURL)
	if err != nil {
		return Decoded{}, fmt.Errorf("decode target url: %w", err)
	}
	u, err := url.Parse(target)
	if err != nil {
		return Decoded{}, fmt.Errorf("parse target url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Decoded{}, fmt.Errorf("target url %q must be absolute", target)
	}

	return Decoded{JobID: jobID, Modifier: m[2], URL: target}, nil
}

const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// escapeAll percent-encodes every byte outside the unreserved set, so
// the whole URL survives as a single path segment.
func escapeAll(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteString(fmt.Sprintf("%%%02X", c))
	}
	return b.String()
}
