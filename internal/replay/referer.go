package replay

import (
	"regexp"
	"strconv"
)

// refererPattern picks the job id and the percent-encoded original host
// out of a rewritten replay URL appearing in a Referer header.
var refererPattern = regexp.MustCompile(`(?i)/web/(\d+)([a-z]{2}_)?/https?%3A%2F%2F([^/%?]+)`)

// ResolveReferer recovers replay context for a request that did not
// arrive through a rewritten /web/ path: it extracts the job id and the
// original host from the Referer and reconstructs the probable target
// as https://{host}{requestPath}. Heuristic; ok is false whenever the
// Referer is absent or does not carry the expected shape.
func ResolveReferer(referer, requestPath string) (jobID int64, target string, ok bool) {
	if referer == "" {
		return 0, "", false
	}
	m := refererPattern.FindStringSubmatch(referer)
	if m == nil {
		return 0, "", false
	}
	jobID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return jobID, "https://" + m[3] + requestPath, true
}
