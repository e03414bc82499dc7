package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("webharvest.scrape")

// Job describes one crawl: where to start, what an item looks like,
// which values to pull out of each item and how to reach the next
// page.
type Job struct {
	Seed         string
	ItemSelector string
	Fields       FieldSpec
	// NextSelector matches the pagination link. Empty means the seed
	// page is the only page.
	NextSelector string
	// TagSelector matches tag elements inside an item. Empty means
	// records carry no tags.
	TagSelector string
	Headers     map[string]string
	// Delay is the pause between consecutive fetches.
	Delay time.Duration
	// MaxPages caps how many pages one run may fetch. Zero means no
	// cap, the crawl keeps going until a page has no next link.
	MaxPages int
	// Timeout bounds a single fetch. Zero falls back to the fetcher
	// default.
	Timeout time.Duration
}

func (j Job) Validate() error {
	seed, err := url.Parse(j.Seed)
	if err != nil {
		return fmt.Errorf("invalid seed url %q: %w", j.Seed, err)
	}
	if !seed.IsAbs() {
		return fmt.Errorf("seed url %q must be absolute", j.Seed)
	}
	if _, err := cascadia.Parse(j.ItemSelector); err != nil {
		return fmt.Errorf("invalid item selector %q: %w", j.ItemSelector, err)
	}
	if err := j.Fields.Validate(); err != nil {
		return err
	}
	if j.NextSelector != "" {
		if _, err := cascadia.Parse(j.NextSelector); err != nil {
			return fmt.Errorf("invalid next selector %q: %w", j.NextSelector, err)
		}
	}
	if j.TagSelector != "" {
		if _, err := cascadia.Parse(j.TagSelector); err != nil {
			return fmt.Errorf("invalid tag selector %q: %w", j.TagSelector, err)
		}
	}
	if j.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if j.MaxPages < 0 {
		return fmt.Errorf("max pages must not be negative")
	}
	return nil
}

// StopReason says why a crawl ended.
type StopReason string

const (
	// StopNoNextPage means the last page had no pagination link.
	StopNoNextPage StopReason = "no next page"
	// StopMaxPages means following the next link would exceed the
	// page limit.
	StopMaxPages StopReason = "max pages reached"
	// StopNoItems means a page matched no items.
	StopNoItems StopReason = "no items on page"
	// StopFault means a fetch failed. Session.Fault has the details.
	StopFault StopReason = "fetch fault"
)

// Session is the outcome of one crawl. A fault never discards the
// records collected before it: Records always holds everything
// extracted up to the stop.
type Session struct {
	// Id correlates log lines, spans and the stored run.
	Id       string
	Seed     string
	Records  []Record
	Pages    int
	Reason   StopReason
	Fault    *Fault
	Started  time.Time
	Finished time.Time
}

func (s *Session) fail(fault *Fault) {
	s.Reason = StopFault
	s.Fault = fault
}

type Pipeline struct {
	fetcher Fetcher
}

func NewPipeline(fetcher Fetcher) Pipeline {
	return Pipeline{fetcher: fetcher}
}

// Run crawls from the seed until the page limit, a missing next link,
// an empty page or a fetch fault ends it. The returned error is only
// non-nil when the run cannot start at all, every failure mid-crawl is
// reported through the session instead.
func (p Pipeline) Run(ctx context.Context, job Job) (*Session, error) {
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	sessionId, err := random.String(8)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("session", sessionId),
		attribute.String("seed", job.Seed),
		attribute.Int("max_pages", job.MaxPages),
	)

	session := &Session{Id: sessionId, Seed: job.Seed, Started: time.Now()}
	defer func() {
		session.Finished = time.Now()
		span.SetAttributes(
			attribute.Int("pages", session.Pages),
			attribute.Int("records", len(session.Records)),
			attribute.String("reason", string(session.Reason)),
		)
	}()

	// the limiter starts out full so only fetches after the first one
	// wait
	limiter := rate.NewLimiter(rate.Every(job.Delay), 1)
	pageUrl := job.Seed

	for page := 1; ; page++ {
		if err := limiter.Wait(ctx); err != nil {
			session.fail(Classify(pageUrl, err))
			return session, nil
		}

		res, fault := p.fetchPage(ctx, pageUrl, job)
		if fault != nil {
			slog.Warn("stopping crawl on fetch fault",
				"session", sessionId, "url", pageUrl, "page", page,
				"kind", fault.Kind.String(), "err", fault.Err)
			session.fail(fault)
			return session, nil
		}

		doc, err := ParseDocument(res.Body, res.Url)
		if err != nil {
			session.fail(Classify(res.Url, err))
			return session, nil
		}
		session.Pages = page

		result := extractPage(doc, job, page)
		if len(result.records) == 0 {
			slog.Info("no items on page, stopping",
				"session", sessionId, "url", res.Url, "page", page)
			session.Reason = StopNoItems
			return session, nil
		}
		session.Records = append(session.Records, result.records...)
		slog.Info("scraped page",
			"session", sessionId, "url", res.Url, "page", page,
			"items", len(result.records), "next", result.nextUrl,
			"total", len(session.Records))

		if !result.hasNext {
			session.Reason = StopNoNextPage
			return session, nil
		}
		if job.MaxPages > 0 && page+1 > job.MaxPages {
			session.Reason = StopMaxPages
			return session, nil
		}
		pageUrl = result.nextUrl
	}
}

// pageResult is what one fetched page contributes to the session.
type pageResult struct {
	records []Record
	hasNext bool
	nextUrl string
}

// extractPage pulls every item record out of one parsed page and
// resolves the next page link against the page's own URL.
func extractPage(doc *Document, job Job, page int) pageResult {
	var result pageResult
	for _, item := range doc.SelectAll(job.ItemSelector) {
		result.records = append(result.records, extractRecord(item, job, page))
	}

	if job.NextSelector == "" {
		return result
	}
	next, ok := doc.SelectFirst(job.NextSelector)
	if !ok {
		return result
	}
	href := nextHref(next)
	if href == "" {
		return result
	}
	resolved, err := doc.Resolve(href)
	if err != nil {
		slog.Warn("next link does not parse", "href", href, "err", err)
		return result
	}
	result.hasNext = true
	result.nextUrl = resolved
	return result
}

func (p Pipeline) fetchPage(ctx context.Context, pageUrl string, job Job) (*Response, *Fault) {
	ctx, span := tracer.Start(ctx, "fetchPage")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageUrl))

	res, fault := p.fetcher.Fetch(ctx, pageUrl, job.Headers, job.Timeout)
	if fault != nil {
		span.RecordError(fault)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fault
	}
	span.SetAttributes(
		attribute.Int("status", res.Status),
		attribute.Int("body_bytes", len(res.Body)),
	)
	return res, nil
}

func extractRecord(item Selection, job Job, page int) Record {
	record := Record{Page: page}
	for _, field := range job.Fields {
		record.Fields = append(record.Fields, FieldValue{
			Name:  field.Name,
			Value: field.extract(item),
		})
	}
	if job.TagSelector != "" {
		tags := []string{}
		for _, t := range item.SelectAll(job.TagSelector) {
			tags = append(tags, t.Text())
		}
		record.Tags = tags
	}
	return record
}

// nextHref digs the link target out of the matched pagination element,
// falling back to a nested anchor when the element itself has no href.
func nextHref(next Selection) string {
	if href, ok := next.Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	if a, ok := next.SelectFirst("a[href]"); ok {
		return strings.TrimSpace(a.AttrOr("href", ""))
	}
	return ""
}
