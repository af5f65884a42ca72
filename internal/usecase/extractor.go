package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
	"github.com/user/jobscraper-service/pkg/metrics"
	"github.com/user/jobscraper-service/pkg/utils"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// ExtractorConfig holds the detail page URL template.
type ExtractorConfig struct {
	JobViewURL string // one %s verb for the job id
}

// ExtractionError reports a detail page that lacked required fields.
type ExtractionError struct {
	JobID  entity.JobID
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract job %s: %s", e.JobID, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return repository.ErrExtractionFailed
}

var (
	titleSelectors = []string{
		".job-details-jobs-unified-top-card__job-title",
		".jobs-unified-top-card__job-title",
		".top-card-layout__title",
		".topcard__title",
		"h1",
	}
	companySelectors = []string{
		".job-details-jobs-unified-top-card__company-name",
		".jobs-unified-top-card__company-name",
		".topcard__org-name-link",
		".top-card-layout__card .topcard__flavor a",
	}
	locationSelectors = []string{
		".job-details-jobs-unified-top-card__primary-description-container .tvm__text",
		".job-details-jobs-unified-top-card__bullet",
		".jobs-unified-top-card__bullet",
		".topcard__flavor--bullet",
		".jobs-unified-top-card__subtitle-primary [class*='location']",
		".job-details-jobs-unified-top-card__primary-description-without-tagline",
		".jobs-unified-top-card__subtitle-primary",
		".job-details-jobs-unified-top-card__primary-description",
	}
	descriptionSelectors = []string{
		".jobs-description__content",
		".jobs-box__html-content",
		"#job-details",
		".description__text",
		".show-more-less-html__markup",
		".jobs-description",
		".jobs-unified-description__content",
	}

	notLocationWords = []string{
		"full-time", "part-time", "contract", "temporary", "internship",
		"applicant", "promoted", "reposted", "easy apply",
	}
	boilerplateMarkers = []string{
		"about the company", "about us", "benefits", "perks", "equal opportunity", "eeo statement",
	}
	contentMarkers = []string{
		"responsibilities", "requirements", "qualifications", "what you'll do", "what you will do", "job description",
	}
	quotes       = strings.NewReplacer("\u2018", "'", "\u2019", "'", "\u201c", `"`, "\u201d", `"`)
	relativeDate = regexp.MustCompile(`\bago\b|^just now$`)
	chromeLines  = []string{"see more", "show more", "see less", "show less", "about the job"}
)

// Extractor turns a job detail page into a JobRecord.
type Extractor struct {
	nav        *Navigator
	classifier *Classifier
	cfg        ExtractorConfig
	logger     *zap.Logger
	now        func() time.Time
}

func NewExtractor(nav *Navigator, classifier *Classifier, cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	return &Extractor{
		nav:        nav,
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Extract loads the detail page of id and builds its record. Navigation
// errors are returned unchanged. Missing title or company yields an
// *ExtractionError. Location and description default to "".
func (e *Extractor) Extract(ctx context.Context, id entity.JobID) (entity.JobRecord, error) {
	start := time.Now()
	defer func() { metrics.ExtractDuration.Observe(time.Since(start).Seconds()) }()

	url := utils.JobURL(e.cfg.JobViewURL, string(id))
	page, err := e.nav.Navigate(ctx, url)
	if err != nil {
		return entity.JobRecord{}, err
	}
	metrics.PagesVisited.WithLabelValues("detail").Inc()

	rec, err := e.parse(id, url, page)
	if err != nil {
		return entity.JobRecord{}, err
	}
	e.logger.Debug("job extracted",
		zap.String("job_id", string(id)),
		zap.String("title", rec.Title),
		zap.Int("description_len", len(rec.Description)),
	)
	return rec, nil
}

func (e *Extractor) parse(id entity.JobID, url string, page repository.PageHandle) (entity.JobRecord, error) {
	title := firstText(page, titleSelectors)
	if title == "" {
		return entity.JobRecord{}, &ExtractionError{JobID: id, Reason: "title not found"}
	}
	company := firstText(page, companySelectors)
	if company == "" {
		return entity.JobRecord{}, &ExtractionError{JobID: id, Reason: "company not found"}
	}

	location := findLocation(page, company)
	description := ""
	for _, sel := range descriptionSelectors {
		if raw, ok := page.BlockText(sel); ok {
			description = cleanDescription(raw)
			if description != "" {
				break
			}
		}
	}

	return entity.JobRecord{
		JobID:       id,
		Title:       title,
		Company:     company,
		Location:    location,
		Country:     entity.CountryFromLocation(location),
		Description: description,
		Providers:   e.classifier.Classify(description),
		URL:         url,
		ExtractedAt: e.now().UTC(),
	}, nil
}

func firstText(page repository.PageHandle, selectors []string) string {
	for _, sel := range selectors {
		if s, ok := page.Text(sel); ok {
			return s
		}
	}
	return ""
}

// findLocation returns the first candidate that looks like a place. Top card
// subtitles often read "Company · City, Country · 2 days ago · 40 applicants",
// so candidates are split on the middle dot first.
func findLocation(page repository.PageHandle, company string) string {
	for _, sel := range locationSelectors {
		for _, text := range page.TextAll(sel) {
			for _, part := range strings.Split(text, "·") {
				part = strings.TrimSpace(part)
				if looksLikeLocation(part, company) {
					return part
				}
			}
		}
	}
	return ""
}

func looksLikeLocation(text, company string) bool {
	if text == "" || strings.EqualFold(text, company) || isDigits(text) {
		return false
	}
	lower := strings.ToLower(text)
	if relativeDate.MatchString(lower) {
		return false
	}
	for _, w := range notLocationWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	// Workplace type labels on their own are not places.
	switch lower {
	case "remote", "on-site", "hybrid":
		return false
	}
	return true
}

func isDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != ',' && r != '.' {
			return false
		}
	}
	return true
}

// cleanDescription normalizes a block-text description into paragraphs
// separated by blank lines. Expander labels, duplicate paragraphs and
// boilerplate sections are removed.
func cleanDescription(raw string) string {
	raw = quotes.Replace(norm.NFKC.String(raw))

	var (
		out         []string
		seen        = make(map[string]struct{})
		boilerplate bool
	)
	for _, line := range strings.Split(raw, "\n") {
		p := strings.Join(strings.Fields(line), " ")
		if p == "" {
			continue
		}
		lower := strings.ToLower(strings.TrimLeft(p, "•-*· "))
		if isChromeLine(lower) {
			continue
		}
		switch {
		case hasAnyPrefix(lower, contentMarkers):
			boilerplate = false
		case hasAnyPrefix(lower, boilerplateMarkers):
			boilerplate = true
		}
		if boilerplate {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n\n")
}

func isChromeLine(lower string) bool {
	lower = strings.TrimRight(lower, ".…:")
	for _, c := range chromeLines {
		if lower == c {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
