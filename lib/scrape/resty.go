package scrape

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"time"
	"webharvest/lib/restyutil"
	"webharvest/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

const defaultTimeout = time.Second * 30

type FetcherOptions struct {
	// UserAgent overrides the default desktop Chrome user agent.
	UserAgent string
	// Timeout applies when a fetch is given no explicit timeout.
	Timeout time.Duration
	// CloudflareBypass installs a transport that mimics a real
	// browser's TLS fingerprint, for sites fronted by bot detection.
	CloudflareBypass bool
	// DebugDir, when set, dumps a transcript of every request and
	// response into that directory. Only the resty fetcher honors it.
	DebugDir string
}

// RestyFetcher fetches pages over HTTP with a shared cookie jar and
// traced requests.
type RestyFetcher struct {
	http *resty.Client
}

var _ Fetcher = RestyFetcher{}

func NewRestyFetcher(opts FetcherOptions) (RestyFetcher, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return RestyFetcher{}, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client.SetTimeout(timeout)

	telemetry.InstrumentResty(client, "webharvest.scrape/http")
	if opts.DebugDir != "" {
		output, err := restyutil.NewFilesystemOutput(opts.DebugDir)
		if err != nil {
			return RestyFetcher{}, fmt.Errorf("create debug output: %w", err)
		}
		restyutil.InstrumentClient(client, output)
	}

	return RestyFetcher{http: client}, nil
}

func (f RestyFetcher) Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*Response, *Fault) {
	req := f.http.R().SetContext(ctx)
	for key, value := range headers {
		req.SetHeader(key, value)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
		req.SetContext(ctx)
	}

	res, err := req.Get(url)
	if err != nil {
		return nil, Classify(url, err)
	}
	if !res.IsSuccess() {
		return nil, statusFault(url, res.StatusCode())
	}

	finalUrl := url
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalUrl = res.RawResponse.Request.URL.String()
	}
	return &Response{
		Status: res.StatusCode(),
		Body:   res.Body(),
		Url:    finalUrl,
	}, nil
}
