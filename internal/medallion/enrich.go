// Package medallion implements the Bronze→Silver→Gold pipeline of
// spec.md §4.8 (C8): inbox enrichment (dedup-or-fetch), title/meta
// extraction, and content-type classification. Gold-tier promotion and
// demotion are not done here; they live in internal/scoring. The batch-of-N, compare-then-merge
// shape is carried over from the teacher's internal/importer package
// (IssueDataChanged's field-comparator drives the dedup-or-insert
// decision there; SortByDepth's deterministic-order processing maps to
// this package's captured_at-ascending batch order).
package medallion

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rekall-kb/rekall/internal/config"
	"github.com/rekall-kb/rekall/internal/scoring"
	"github.com/rekall-kb/rekall/internal/storage"
	"github.com/rekall-kb/rekall/internal/types"
)

// Fetcher abstracts the HTTP client enrichment uses, so tests can stub
// network access without a real listener.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, error)
}

// FetchResult is the outcome of fetching a candidate URL.
type FetchResult struct {
	StatusCode int
	Body       string
	Err        error
}

// HTTPFetcher is the default Fetcher, a bounded-timeout GET per spec.md
// §4.8 step 2b ("no retry").
type HTTPFetcher struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{}, Timeout: timeout}
}

const maxFetchBody = 1 << 20 // 1 MiB, enough for title/meta tags without reading whole pages

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("User-Agent", "rekall-enrichment/1")

	resp, err := f.Client.Do(req)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	return FetchResult{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// Enricher runs the Bronze→Silver batch job of spec.md §4.8.
type Enricher struct {
	Store    storage.Storage
	Fetch    Fetcher
	Config   config.EnrichmentConfig
	Scoring  scoring.Config
	Logger   *slog.Logger
}

func New(store storage.Storage, fetcher Fetcher, cfg config.EnrichmentConfig, scoringCfg scoring.Config, logger *slog.Logger) *Enricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{Store: store, Fetch: fetcher, Config: cfg, Scoring: scoringCfg, Logger: logger}
}

// Run drains up to Config.BatchSize pending InboxEntry rows, enriching
// or merging each into Silver. It returns the number of rows processed
// (whether or not each individually succeeded). A single row's fetch
// failure never aborts the batch: the URL gets an inaccessible staging
// entry and its rows are stamped enriched like any other. Only rows whose
// commit transaction fails stay unmarked, and they retry on the next pass.
func (en *Enricher) Run(ctx context.Context) (int, error) {
	batchSize := en.Config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	pending, err := en.Store.PendingInboxEntries(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	concurrency := en.Config.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	sem := semaphore.NewWeighted(int64(concurrency))
	now := time.Now().UTC()

	processed := 0

	// Rows are grouped by URL before any fetch runs, so two inbox rows
	// citing the same new URL in one batch merge into a single staging
	// write instead of racing each other's citation_count.
	groups := make(map[string]*urlGroup)
	var order []string
	for _, inbox := range pending {
		if !inbox.IsValid {
			// Invalid URLs are stamped enriched with no Silver row so
			// they never resurface in PendingInboxEntries.
			if err := en.Store.MarkInboxEnriched(ctx, inbox.ID, now); err != nil {
				en.Logger.Error("mark invalid inbox entry enriched", "id", inbox.ID, "error", err)
			}
			processed++
			continue
		}
		g, ok := groups[inbox.URL]
		if !ok {
			existing, err := en.Store.GetStagingByURL(ctx, inbox.URL)
			g = &urlGroup{staging: existing, needsFetch: err != nil}
			groups[inbox.URL] = g
			order = append(order, inbox.URL)
		}
		g.rows = append(g.rows, inbox)
	}

	// The dedup-vs-fetch decision above is cheap, local, and sequential;
	// only the network round trip per genuinely new URL runs
	// concurrently, bounded by sem, matching spec.md §5's "parallel
	// worker threads for enrichment HTTP fetches".
	var wg sync.WaitGroup
	for _, url := range order {
		g := groups[url]
		if !g.needsFetch {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return processed, err
		}
		wg.Add(1)
		go func(url string, g *urlGroup) {
			defer wg.Done()
			defer sem.Release(1)
			g.staging = en.fetchAndBuild(ctx, url, now)
		}(url, g)
	}
	wg.Wait()

	for _, url := range order {
		g := groups[url]
		en.commitGroup(ctx, url, g, now)
		processed += len(g.rows)
	}
	return processed, nil
}

// urlGroup is every pending inbox row for one distinct URL within a
// single Run batch, plus the staging entry (existing or freshly
// fetched) they all merge citation bookkeeping into.
type urlGroup struct {
	rows       []*types.InboxEntry
	staging    *types.StagingEntry
	needsFetch bool
}

// commitGroup applies every row's citation bookkeeping to the group's
// staging entry and persists both the staging write and every row's
// enriched stamp in one transaction, so a crash between the two can
// never leave a row re-entering mergeInboxIntoExisting on the next
// pass and double-counting its citation.
func (en *Enricher) commitGroup(ctx context.Context, url string, g *urlGroup, now time.Time) {
	staging := g.staging
	for _, inbox := range g.rows {
		staging = mergeInboxIntoExisting(staging, inbox, now)
	}
	staging.PromotionScore = scoring.Score(staging, en.Scoring, now)

	err := en.Store.RunInTransaction(ctx, func(txn storage.Transaction) error {
		if err := txn.PutStagingEntry(ctx, staging); err != nil {
			return err
		}
		for _, inbox := range g.rows {
			if err := txn.MarkInboxEnriched(ctx, inbox.ID, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		en.Logger.Error("enrich inbox group", "url", url, "error", err)
	}
}

// mergeInboxIntoExisting applies spec.md §4.8 step 2a: citation/project
// bookkeeping with no metadata re-fetch.
func mergeInboxIntoExisting(existing *types.StagingEntry, inbox *types.InboxEntry, now time.Time) *types.StagingEntry {
	existing.CitationCount++
	existing.LastSeen = now
	if !containsString(existing.ProjectsList, inbox.Project) && inbox.Project != "" {
		existing.ProjectsList = append(existing.ProjectsList, inbox.Project)
		existing.ProjectCount = len(existing.ProjectsList)
	}
	existing.InboxIDs = append(existing.InboxIDs, inbox.ID)
	existing.EnrichedAt = &now
	return existing
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// fetchAndBuild applies spec.md §4.8 step 2b: a fresh StagingEntry built
// from an HTTP fetch, or an inaccessible placeholder on failure. The
// returned entry carries no citation bookkeeping yet; the caller folds
// every group row into it via mergeInboxIntoExisting.
func (en *Enricher) fetchAndBuild(ctx context.Context, rawURL string, now time.Time) *types.StagingEntry {
	staging := &types.StagingEntry{
		URL:       rawURL,
		Domain:    hostOf(rawURL),
		FirstSeen: now,
		LastSeen:  now,
	}

	result, err := en.Fetch.Fetch(ctx, rawURL)
	if err != nil {
		staging.IsAccessible = false
		en.Logger.Warn("enrichment fetch failed", "url", rawURL, "error", err)
		return staging
	}
	staging.HTTPStatus = result.StatusCode
	if result.StatusCode >= 400 {
		staging.IsAccessible = false
		return staging
	}
	staging.IsAccessible = true
	staging.Title = extractTitle(result.Body)
	staging.Description = extractMetaDescription(result.Body)
	staging.Language = extractHTMLLang(result.Body)
	staging.ContentType = classifyContentType(rawURL, result.Body)
	return staging
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

var (
	titleTagPattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescPattern = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]+content=["'](.*?)["']`)
	htmlLangPattern = regexp.MustCompile(`(?is)<html[^>]+lang=["']([a-zA-Z-]+)["']`)
	htmlTagPattern  = regexp.MustCompile(`(?is)<[^>]+>`)
)

// extractTitle pulls the first <title> tag's text, stripped of nested
// markup and collapsed whitespace. A lightweight regex scan is used
// rather than a full HTML parser, the same trade spec.md §9 calls for:
// Rekall only ever needs title/meta/lang, not a DOM.
func extractTitle(body string) string {
	m := titleTagPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return cleanText(m[1])
}

func extractMetaDescription(body string) string {
	m := metaDescPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return cleanText(m[1])
}

func extractHTMLLang(body string) string {
	m := htmlLangPattern.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return m[1]
}

func cleanText(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// classifyContentType applies spec.md §4.8's domain/URL heuristics.
func classifyContentType(rawURL, body string) types.ContentType {
	u, err := url.Parse(rawURL)
	host := ""
	path := ""
	if err == nil {
		host = strings.ToLower(u.Hostname())
		path = strings.ToLower(u.Path)
	}

	switch {
	case host == "github.com" || host == "gitlab.com" || host == "bitbucket.org" || strings.Contains(host, "sourcehut"):
		return types.ContentRepository
	case strings.Contains(host, "arxiv.org") || strings.Contains(path, "/paper") || strings.Contains(path, "/abs/"):
		return types.ContentPaper
	case strings.Contains(host, "stackoverflow.com") || strings.Contains(host, "reddit.com") || strings.Contains(path, "/forum") || strings.Contains(path, "/discuss"):
		return types.ContentForum
	case strings.Contains(path, "/blog") || strings.Contains(host, "medium.com") || strings.Contains(host, "substack.com"):
		return types.ContentBlog
	case strings.Contains(path, "/api") || strings.Contains(host, "api."):
		return types.ContentAPI
	case strings.Contains(host, "docs.") || strings.Contains(path, "/docs") || strings.Contains(path, "/documentation"):
		return types.ContentDocumentation
	default:
		return types.ContentOther
	}
}
