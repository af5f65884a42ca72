package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	jobViewPattern    = regexp.MustCompile(`/jobs/view/(?:[^/?#]*-)?(\d+)`)
	currentJobPattern = regexp.MustCompile(`[?&]currentJobId=(\d+)`)
	trailingDigits    = regexp.MustCompile(`(\d+)\s*$`)
)

// WithQueryParam returns rawURL with key set to value, replacing any
// existing occurrences of key.
func WithQueryParam(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// WithOffset sets the "start" pagination parameter of a search URL.
func WithOffset(searchURL string, offset int) (string, error) {
	return WithQueryParam(searchURL, "start", strconv.Itoa(offset))
}

// JobIDFromURL extracts a posting id from a /jobs/view/ link or a
// currentJobId query parameter. It returns "" when neither is present.
func JobIDFromURL(raw string) string {
	if m := jobViewPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	if m := currentJobPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return ""
}

// JobIDFromURN extracts the numeric id from values like
// "urn:li:fsd_jobPosting:4176105597".
func JobIDFromURN(urn string) string {
	if m := trailingDigits.FindStringSubmatch(urn); m != nil {
		return m[1]
	}
	return ""
}

// JobURL renders a job detail URL from a template containing one %s verb.
func JobURL(template, id string) string {
	if !strings.Contains(template, "%s") {
		return strings.TrimRight(template, "/") + "/" + id + "/"
	}
	return fmt.Sprintf(template, id)
}
