package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// CollyFetcher fetches pages through a colly collector. It honors
// robots.txt, which the plain HTTP fetcher does not.
type CollyFetcher struct {
	mu        sync.Mutex
	collector *colly.Collector
	// timeout is the fallback for fetches without an explicit one.
	timeout time.Duration
	headers map[string]string
	res     *Response
	fault   *Fault
}

var _ Fetcher = (*CollyFetcher)(nil)

func NewCollyFetcher(opts FetcherOptions) *CollyFetcher {
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		// revisits happen whenever a run is repeated, colly must not
		// dedupe them away
		colly.AllowURLRevisit(),
	)
	// colly ignores robots.txt unless told otherwise
	c.IgnoreRobotsTxt = false
	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
	})

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.SetRequestTimeout(timeout)

	f := &CollyFetcher{collector: c, timeout: timeout}

	c.OnRequest(func(r *colly.Request) {
		for key, value := range f.headers {
			r.Headers.Set(key, value)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode/100 != 2 {
			f.fault = statusFault(r.Request.URL.String(), r.StatusCode)
			return
		}
		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		f.res = &Response{
			Status: r.StatusCode,
			Body:   body,
			Url:    r.Request.URL.String(),
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		url := ""
		if r != nil && r.Request != nil {
			url = r.Request.URL.String()
		}
		if r != nil && r.StatusCode >= 300 {
			f.fault = statusFault(url, r.StatusCode)
			return
		}
		f.fault = Classify(url, err)
	})

	return f
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*Response, *Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, Classify(url, err)
	}

	f.headers = headers
	f.res = nil
	f.fault = nil
	// the collector is shared, so a per-call timeout must not leak
	// into later fetches that pass zero
	if timeout <= 0 {
		timeout = f.timeout
	}
	f.collector.SetRequestTimeout(timeout)

	err := f.collector.Visit(url)
	f.collector.Wait()

	switch {
	case f.fault != nil:
		return nil, f.fault
	case f.res != nil:
		return f.res, nil
	case err != nil:
		return nil, Classify(url, err)
	default:
		return nil, Classify(url, fmt.Errorf("no response received"))
	}
}
