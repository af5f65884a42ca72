package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
	"github.com/user/jobscraper-service/pkg/metrics"
	"github.com/user/jobscraper-service/pkg/utils"
	"go.uber.org/zap"
)

// CollectorConfig bounds search-result pagination.
type CollectorConfig struct {
	PageSize            int
	MaxEmptyPages       int
	MaxConsecutiveSkips int
	MaxPages            int
}

// DefaultCollectorConfig returns the pagination limits used in production.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		PageSize:            25,
		MaxEmptyPages:       2,
		MaxConsecutiveSkips: 3,
		MaxPages:            80,
	}
}

// Reporter receives progress from the collector and extractor.
type Reporter interface {
	Collected(id entity.JobID)
	Log(level entity.LogLevel, kind entity.LogKind, id entity.JobID, msg string)
}

// Collector pages through search results and gathers unique job ids.
type Collector struct {
	nav      *Navigator
	pacer    Pacer
	cfg      CollectorConfig
	reporter Reporter
	logger   *zap.Logger
}

func NewCollector(nav *Navigator, pacer Pacer, cfg CollectorConfig, reporter Reporter, logger *zap.Logger) *Collector {
	if cfg.PageSize < 1 {
		cfg.PageSize = 25
	}
	if cfg.MaxEmptyPages < 1 {
		cfg.MaxEmptyPages = 1
	}
	if cfg.MaxConsecutiveSkips < 1 {
		cfg.MaxConsecutiveSkips = 1
	}
	return &Collector{nav: nav, pacer: pacer, cfg: cfg, reporter: reporter, logger: logger}
}

// Collect returns the unique job ids found for spec in discovery order,
// never more than spec.MaxJobs when it is set.
//
// Running out of results is not an error. A page that cannot be loaded is
// skipped; MaxConsecutiveSkips skips in a row abort with
// ErrCollectionAborted. Cancellation and ErrSessionLost are returned as is,
// together with the ids gathered so far.
func (c *Collector) Collect(ctx context.Context, spec entity.SearchSpec) ([]entity.JobID, error) {
	var (
		ids        []entity.JobID
		seen       = make(map[entity.JobID]struct{})
		emptyPages int
		skips      int
		offset     = spec.StartPosition
	)

	for page := 0; c.cfg.MaxPages <= 0 || page < c.cfg.MaxPages; page, offset = page+1, offset+c.cfg.PageSize {
		if page > 0 {
			if err := c.pacer.Wait(ctx); err != nil {
				return ids, err
			}
		}

		pageURL, err := utils.WithOffset(spec.SearchURL, offset)
		if err != nil {
			return ids, fmt.Errorf("build search page url: %w", err)
		}

		handle, err := c.nav.Navigate(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return ids, ctx.Err()
			}
			if errors.Is(err, repository.ErrSessionLost) {
				return ids, err
			}
			skips++
			c.reporter.Log(entity.LevelWarn, entity.LogPageSkipped, "",
				fmt.Sprintf("skipped results page at offset %d: %v", offset, err))
			if skips >= c.cfg.MaxConsecutiveSkips {
				return ids, fmt.Errorf("%w: %d consecutive pages failed, last at offset %d",
					repository.ErrCollectionAborted, skips, offset)
			}
			continue
		}
		skips = 0
		metrics.PagesVisited.WithLabelValues("search").Inc()

		added := 0
		for _, id := range cardJobIDs(handle) {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			added++
			c.reporter.Collected(id)
			if !spec.Unbounded() && len(ids) >= spec.MaxJobs {
				c.logger.Info("collection reached max_jobs", zap.Int("max_jobs", spec.MaxJobs))
				return ids, nil
			}
		}

		c.logger.Debug("results page collected",
			zap.Int("offset", offset),
			zap.Int("new_ids", added),
			zap.Int("total", len(ids)),
		)

		if added == 0 {
			emptyPages++
			if emptyPages >= c.cfg.MaxEmptyPages {
				c.logger.Info("search results exhausted", zap.Int("offset", offset), zap.Int("total", len(ids)))
				return ids, nil
			}
			continue
		}
		emptyPages = 0
	}

	c.logger.Info("collection stopped at page limit", zap.Int("max_pages", c.cfg.MaxPages), zap.Int("total", len(ids)))
	return ids, nil
}

// cardJobIDs reads job ids from a results page in document order. Several
// attribute sources are tried because the card markup varies.
func cardJobIDs(page repository.PageHandle) []entity.JobID {
	var out []entity.JobID
	add := func(raw string) {
		if raw != "" {
			out = append(out, entity.JobID(raw))
		}
	}

	for _, v := range page.Attr("[data-job-id]", "data-job-id") {
		add(utils.JobIDFromURN(v))
	}
	for _, v := range page.Attr("[data-occludable-job-id]", "data-occludable-job-id") {
		add(utils.JobIDFromURN(v))
	}
	for _, v := range page.Attr(`[data-entity-urn*="jobPosting"]`, "data-entity-urn") {
		add(utils.JobIDFromURN(v))
	}
	for _, v := range page.Attr(`a[href*="/jobs/view/"], a[href*="currentJobId="]`, "href") {
		add(utils.JobIDFromURL(v))
	}
	return out
}
