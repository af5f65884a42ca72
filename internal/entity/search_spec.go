package entity

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidSearchSpec is returned by Validate for any malformed spec.
var ErrInvalidSearchSpec = errors.New("invalid search spec")

// SearchSpec is the immutable input of a run.
type SearchSpec struct {
	SearchURL     string  `json:"search_url"`
	MaxJobs       int     `json:"max_jobs"` // 0 means unbounded
	StartPosition int     `json:"start_position"`
	ManualJobIDs  []JobID `json:"manual_job_ids,omitempty"`
	SkipSeen      bool    `json:"skip_seen"`
}

// HasManualIDs reports whether discovery should be skipped.
func (s SearchSpec) HasManualIDs() bool {
	return len(s.ManualJobIDs) > 0
}

// Unbounded reports whether the spec places no limit on collected jobs.
func (s SearchSpec) Unbounded() bool {
	return s.MaxJobs == 0
}

// Validate checks the spec and returns a normalized copy. Manual ids are
// trimmed and de-duplicated keeping the first occurrence.
func (s SearchSpec) Validate() (SearchSpec, error) {
	if s.MaxJobs < 0 {
		return s, fmt.Errorf("%w: max_jobs must not be negative", ErrInvalidSearchSpec)
	}
	if s.StartPosition < 0 {
		return s, fmt.Errorf("%w: start_position must not be negative", ErrInvalidSearchSpec)
	}

	out := s
	out.SearchURL = strings.TrimSpace(s.SearchURL)
	out.ManualJobIDs = nil
	seen := make(map[JobID]struct{}, len(s.ManualJobIDs))
	for _, raw := range s.ManualJobIDs {
		id := JobID(strings.TrimSpace(string(raw)))
		if id == "" {
			return s, fmt.Errorf("%w: manual_job_ids contains a blank id", ErrInvalidSearchSpec)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.ManualJobIDs = append(out.ManualJobIDs, id)
	}

	if out.HasManualIDs() {
		return out, nil
	}
	if out.SearchURL == "" {
		return s, fmt.Errorf("%w: search_url is required when manual_job_ids is empty", ErrInvalidSearchSpec)
	}
	u, err := url.ParseRequestURI(out.SearchURL)
	if err != nil || u.Host == "" {
		return s, fmt.Errorf("%w: search_url is not an absolute URL", ErrInvalidSearchSpec)
	}
	return out, nil
}
