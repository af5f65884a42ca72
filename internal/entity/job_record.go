package entity

import (
	"strings"
	"time"
)

// JobID is the site's opaque identifier for one posting.
type JobID string

// ProviderTag names a cloud provider matched in a posting.
type ProviderTag string

// JobRecord is one row of the output dataset. Records are only created for
// jobs that were extracted successfully and are never mutated afterwards.
type JobRecord struct {
	JobID       JobID         `json:"job_id"`
	Title       string        `json:"title"`
	Company     string        `json:"company"`
	Location    string        `json:"location"`
	Country     string        `json:"country"`
	Description string        `json:"description"`
	Providers   []ProviderTag `json:"providers"`
	URL         string        `json:"url"`
	ExtractedAt time.Time     `json:"extracted_at"`
}

// HasProvider reports whether the record carries the given tag.
func (r JobRecord) HasProvider(tag ProviderTag) bool {
	for _, p := range r.Providers {
		if p == tag {
			return true
		}
	}
	return false
}

// CountryUnknown is the country of a location without a country segment.
const CountryUnknown = "Unknown"

// CountryFromLocation returns the last comma separated segment of a
// location, e.g. "Berlin, Germany" -> "Germany". Locations without a comma,
// including an empty one, yield CountryUnknown.
func CountryFromLocation(location string) string {
	i := strings.LastIndex(location, ",")
	if i < 0 {
		return CountryUnknown
	}
	return strings.TrimSpace(location[i+1:])
}
