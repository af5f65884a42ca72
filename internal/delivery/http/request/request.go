package request

import "github.com/user/jobscraper-service/internal/entity"

// StartRunRequest is the body of POST /api/runs.
type StartRunRequest struct {
	SearchURL     string   `json:"search_url"`
	MaxJobs       int      `json:"max_jobs"`
	StartPosition int      `json:"start_position"`
	ManualJobIDs  []string `json:"manual_job_ids"`
	SkipSeen      bool     `json:"skip_seen"`
}

// ToSearchSpec converts the request; validation happens in the run manager.
func (r StartRunRequest) ToSearchSpec() entity.SearchSpec {
	ids := make([]entity.JobID, 0, len(r.ManualJobIDs))
	for _, id := range r.ManualJobIDs {
		ids = append(ids, entity.JobID(id))
	}
	return entity.SearchSpec{
		SearchURL:     r.SearchURL,
		MaxJobs:       r.MaxJobs,
		StartPosition: r.StartPosition,
		ManualJobIDs:  ids,
		SkipSeen:      r.SkipSeen,
	}
}
