package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/jobscraper-service/internal/adapter/htmlpage"
	"github.com/user/jobscraper-service/internal/entity"
	"github.com/user/jobscraper-service/internal/repository"
	"github.com/user/jobscraper-service/pkg/metrics"
	"github.com/user/jobscraper-service/pkg/utils"
)

const (
	testSearchURL  = "https://www.linkedin.com/jobs/search/?keywords=cloud+engineer"
	testJobViewURL = "https://www.linkedin.com/jobs/view/%s/"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

// fakeBrowser serves fixture HTML by URL. Unknown URLs render an empty
// results page.
type fakeBrowser struct {
	mu        sync.Mutex
	pages     map[string]string
	errs      map[string][]error  // consumed one per load
	redirects map[string][]string // consumed one per load
	failAll   error
	loads     []string
	closed    bool
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{
		pages:     make(map[string]string),
		errs:      make(map[string][]error),
		redirects: make(map[string][]string),
	}
}

func (b *fakeBrowser) Load(ctx context.Context, url string) (repository.PageHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.loads = append(b.loads, url)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.failAll != nil {
		return nil, b.failAll
	}
	if q := b.errs[url]; len(q) > 0 {
		b.errs[url] = q[1:]
		if q[0] != nil {
			return nil, q[0]
		}
	}
	landed := url
	if q := b.redirects[url]; len(q) > 0 {
		b.redirects[url] = q[1:]
		landed = q[0]
	}
	body, ok := b.pages[url]
	if !ok || landed != url {
		body = "<html><head><title>Jobs</title></head><body><ul></ul></body></html>"
	}
	return htmlpage.New(landed, body)
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBrowser) loadCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.loads)
}

func (b *fakeBrowser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// addSearchPage serves ids on the results page at offset.
func (b *fakeBrowser) addSearchPage(t *testing.T, offset int, ids ...string) {
	t.Helper()
	b.pages[mustOffset(t, offset)] = searchPage(ids...)
}

func (b *fakeBrowser) addJob(id, body string) {
	b.pages[utils.JobURL(testJobViewURL, id)] = body
}

func searchPage(ids ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>Cloud Engineer Jobs</title></head><body><ul class=\"jobs-search-results__list\">")
	for _, id := range ids {
		fmt.Fprintf(&sb, `<li data-occludable-job-id="%s"><div class="job-card-container" data-job-id="%s">`+
			`<a class="job-card-list__title" href="/jobs/view/%s/?refId=abc">Engineer</a></div></li>`, id, id, id)
	}
	sb.WriteString("</ul></body></html>")
	return sb.String()
}

func detailPage(title, company, location, description string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>" + title + " | LinkedIn</title></head><body>")
	sb.WriteString(`<div class="job-details-jobs-unified-top-card__container">`)
	if title != "" {
		sb.WriteString(`<h1 class="job-details-jobs-unified-top-card__job-title">` + title + `</h1>`)
	}
	if company != "" {
		sb.WriteString(`<div class="job-details-jobs-unified-top-card__company-name"><a href="#">` + company + `</a></div>`)
	}
	sb.WriteString(`<div class="job-details-jobs-unified-top-card__primary-description-container">` +
		`<span class="tvm__text">` + location + `</span><span class="tvm__text"> · </span>` +
		`<span class="tvm__text">3 days ago</span></div></div>`)
	sb.WriteString(`<article class="jobs-description__container"><div class="jobs-description__content">` +
		`<h2>About the job</h2>` + description + `<button>See more</button></div></article>`)
	sb.WriteString("</body></html>")
	return sb.String()
}

func testNavigatorConfig() NavigatorConfig {
	cfg := DefaultNavigatorConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.RatePerSec = 0
	cfg.VerificationTimeout = time.Second
	return cfg
}

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Navigator:   testNavigatorConfig(),
		Collector:   DefaultCollectorConfig(),
		Extractor:   ExtractorConfig{JobViewURL: testJobViewURL},
		LogTailSize: 50,
	}
}

type noWait struct{}

func (noWait) Wait(ctx context.Context) error { return ctx.Err() }

// cancelOnWait cancels the run on its n-th call.
type cancelOnWait struct {
	n      int
	calls  int
	cancel context.CancelFunc
}

func (p *cancelOnWait) Wait(ctx context.Context) error {
	p.calls++
	if p.calls == p.n {
		p.cancel()
	}
	return ctx.Err()
}

// blockingPacer waits until the run is cancelled.
type blockingPacer struct{}

func (blockingPacer) Wait(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type recordingReporter struct {
	ids     []entity.JobID
	entries []entity.LogEntry
}

func (r *recordingReporter) Collected(id entity.JobID) { r.ids = append(r.ids, id) }

func (r *recordingReporter) Log(level entity.LogLevel, kind entity.LogKind, id entity.JobID, msg string) {
	r.entries = append(r.entries, entity.LogEntry{Level: level, Kind: kind, JobID: id, Message: msg})
}

func (r *recordingReporter) count(kind entity.LogKind) int {
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func seqIDs(from, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprint(from + i)
	}
	return ids
}
