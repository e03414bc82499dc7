package scrape

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"webharvest/lib/telemetry"
	"webharvest/lib/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func quotesPageHtml(page int, hasNext bool) string {
	next := ""
	if hasNext {
		next = fmt.Sprintf(`<nav><li class="next"><a href="/page/%d/">Next</a></li></nav>`, page+1)
	}
	return fmt.Sprintf(`<html><body>
	<div class="quote">
		<span class="text">Quote %d-1</span>
		<small class="author">Author %d</small>
		<div class="tags"><a class="tag">alpha</a><a class="tag">beta</a></div>
	</div>
	<div class="quote">
		<span class="text">Quote %d-2</span>
		<div class="tags"></div>
	</div>
	%s</body></html>`, page, page, page, next)
}

func quotesSite(t *testing.T) *httptest.Server {
	return testutil.StaticSite(t, map[string]string{
		"/":        quotesPageHtml(1, true),
		"/page/2/": quotesPageHtml(2, true),
		"/page/3/": quotesPageHtml(3, false),
	})
}

func quotesJob(seed string) Job {
	return Job{
		Seed:         seed,
		ItemSelector: ".quote",
		Fields: FieldSpec{
			{Name: "text", Selector: ".text", Mode: ModeSingle},
			{Name: "author", Selector: ".author", Mode: ModeSingle},
		},
		NextSelector: "li.next > a",
		TagSelector:  ".tag",
		MaxPages:     10,
	}
}

func restyPipeline(t *testing.T) Pipeline {
	t.Helper()
	fetcher, err := NewRestyFetcher(FetcherOptions{})
	if err != nil {
		t.Fatal(err)
	}
	return NewPipeline(fetcher)
}

func TestPipelineRun(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "lib/scrape")
	defer cleanup()

	server := quotesSite(t)
	pipeline := restyPipeline(t)

	session, err := pipeline.Run(context.Background(), quotesJob(server.URL+"/"))
	require.NoError(t, err)
	require.Equal(t, StopNoNextPage, session.Reason)
	require.Nil(t, session.Fault)
	require.Len(t, session.Id, 8)
	require.Equal(t, 3, session.Pages)
	require.Len(t, session.Records, 6)

	lastPage := 1
	for _, record := range session.Records {
		require.GreaterOrEqual(t, record.Page, lastPage)
		lastPage = record.Page

		text, ok := record.Get("text")
		require.True(t, ok)
		require.NotEmpty(t, text.Text)
		_, ok = record.Get("author")
		require.True(t, ok)
	}
	require.Equal(t, 3, lastPage)

	// the second quote on every page has no author element
	author, _ := session.Records[1].Get("author")
	require.Equal(t, "No author", author.Text)

	require.Equal(t, []string{"alpha", "beta"}, session.Records[0].Tags)
	require.Equal(t, []string{}, session.Records[1].Tags)

	// records from followed pages prove the relative next link was
	// resolved against the fetched page
	require.Equal(t, 2, session.Records[2].Page)
	text, _ := session.Records[2].Get("text")
	require.Equal(t, "Quote 2-1", text.Text)

	require.False(t, session.Finished.Before(session.Started))
}

func TestPipelineMaxPages(t *testing.T) {
	server := quotesSite(t)
	pipeline := restyPipeline(t)

	job := quotesJob(server.URL + "/")
	job.MaxPages = 2

	session, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, StopMaxPages, session.Reason)
	require.Equal(t, 2, session.Pages)
	require.Len(t, session.Records, 4)
}

func TestPipelineUncapped(t *testing.T) {
	server := quotesSite(t)
	pipeline := restyPipeline(t)

	// a zero MaxPages puts no cap on the crawl, it runs until the
	// last page has no next link
	job := quotesJob(server.URL + "/")
	job.MaxPages = 0

	session, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, StopNoNextPage, session.Reason)
	require.Equal(t, 3, session.Pages)
	require.Len(t, session.Records, 6)
}

func TestPipelineNoItems(t *testing.T) {
	server := testutil.StaticSite(t, map[string]string{
		"/":        quotesPageHtml(1, true),
		"/page/2/": quotesPageHtml(2, true),
		"/page/3/": `<html><body><p>nothing here</p></body></html>`,
	})
	pipeline := restyPipeline(t)

	session, err := pipeline.Run(context.Background(), quotesJob(server.URL+"/"))
	require.NoError(t, err)
	require.Equal(t, StopNoItems, session.Reason)
	require.Equal(t, 3, session.Pages)
	require.Len(t, session.Records, 4)
	require.Equal(t, 2, session.Records[3].Page)
}

func TestPipelineSinglePage(t *testing.T) {
	server := quotesSite(t)
	pipeline := restyPipeline(t)

	job := quotesJob(server.URL + "/")
	job.NextSelector = ""

	session, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, StopNoNextPage, session.Reason)
	require.Equal(t, 1, session.Pages)
	require.Len(t, session.Records, 2)
}

func TestPipelineNextWithoutHref(t *testing.T) {
	server := testutil.StaticSite(t, map[string]string{
		"/": `<html><body>
			<div class="quote"><span class="text">only</span></div>
			<li class="next">no link target</li>
		</body></html>`,
	})
	pipeline := restyPipeline(t)

	job := quotesJob(server.URL + "/")
	job.NextSelector = "li.next"

	session, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, StopNoNextPage, session.Reason)
	require.Len(t, session.Records, 1)
}

func requirePartialStop(t *testing.T, session *Session, kind FaultKind) {
	t.Helper()
	require.Equal(t, StopFault, session.Reason)
	require.NotNil(t, session.Fault)
	require.Equal(t, kind, session.Fault.Kind)
	require.Equal(t, 1, session.Pages)
	require.Len(t, session.Records, 2)
}

func TestPipelineFaults(t *testing.T) {
	t.Run("http status", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, quotesPageHtml(1, true))
		})
		mux.HandleFunc("/page/2/", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		session, err := restyPipeline(t).Run(context.Background(), quotesJob(server.URL+"/"))
		require.NoError(t, err)
		requirePartialStop(t, session, FaultStatus)
		require.Equal(t, http.StatusInternalServerError, session.Fault.Status)
	})

	t.Run("timeout", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, quotesPageHtml(1, true))
		})
		mux.HandleFunc("/page/2/", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		job := quotesJob(server.URL + "/")
		job.Timeout = time.Millisecond * 50

		session, err := restyPipeline(t).Run(context.Background(), job)
		require.NoError(t, err)
		requirePartialStop(t, session, FaultTimeout)
	})

	t.Run("connection", func(t *testing.T) {
		server := testutil.StaticSite(t, map[string]string{
			"/": `<html><body>
				<div class="quote"><span class="text">one</span><small class="author">a</small></div>
				<div class="quote"><span class="text">two</span><small class="author">b</small></div>
				<li class="next"><a href="http://127.0.0.1:1/">Next</a></li>
			</body></html>`,
		})

		session, err := restyPipeline(t).Run(context.Background(), quotesJob(server.URL+"/"))
		require.NoError(t, err)
		requirePartialStop(t, session, FaultConnection)
	})
}

func TestPipelineIdempotent(t *testing.T) {
	server := quotesSite(t)
	job := quotesJob(server.URL + "/")
	ctx := context.Background()

	pipeline := restyPipeline(t)
	first, err := pipeline.Run(ctx, job)
	require.NoError(t, err)
	second, err := pipeline.Run(ctx, job)
	require.NoError(t, err)

	diff := cmp.Diff(first.Records, second.Records)
	if diff != "" {
		t.Fatal(diff)
	}
	require.Equal(t, first.Pages, second.Pages)
	require.Equal(t, first.Reason, second.Reason)

	// a different fetcher over the same site extracts the same records
	colly := NewPipeline(NewCollyFetcher(FetcherOptions{}))
	third, err := colly.Run(ctx, job)
	require.NoError(t, err)
	diff = cmp.Diff(first.Records, third.Records)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestPipelineDelay(t *testing.T) {
	server := quotesSite(t)
	pipeline := restyPipeline(t)

	job := quotesJob(server.URL + "/")
	job.Delay = time.Millisecond * 100

	start := time.Now()
	session, err := pipeline.Run(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, 3, session.Pages)

	// first fetch is immediate, the other two wait out the delay
	require.GreaterOrEqual(t, time.Since(start), time.Millisecond*150)
}

// TestPipelineRandomSites crawls deterministically random site shapes
// and checks the aggregate bookkeeping of each crawl.
func TestPipelineRandomSites(t *testing.T) {
	rndm := rand.New(rand.NewSource(7))
	pipeline := restyPipeline(t)

	for trial := 0; trial < 8; trial++ {
		pageCount := 1 + rndm.Intn(4)
		perPage := make([]int, pageCount)
		pages := map[string]string{}
		total := 0
		for p := 1; p <= pageCount; p++ {
			perPage[p-1] = 1 + rndm.Intn(5)
			total += perPage[p-1]

			var body strings.Builder
			for i := 0; i < perPage[p-1]; i++ {
				fmt.Fprintf(&body, `<div class="quote"><span class="text">q-%d-%d</span></div>`, p, i)
			}
			if p < pageCount {
				fmt.Fprintf(&body, `<li class="next"><a href="/page/%d/">Next</a></li>`, p+1)
			}

			path := "/"
			if p > 1 {
				path = fmt.Sprintf("/page/%d/", p)
			}
			pages[path] = fmt.Sprintf("<html><body>%s</body></html>", body.String())
		}
		server := testutil.StaticSite(t, pages)

		session, err := pipeline.Run(context.Background(), quotesJob(server.URL+"/"))
		require.NoError(t, err)
		require.Equal(t, StopNoNextPage, session.Reason)
		require.Equal(t, pageCount, session.Pages)
		require.Len(t, session.Records, total)

		counts := make([]int, pageCount)
		for _, record := range session.Records {
			counts[record.Page-1]++
		}
		require.Equal(t, perPage, counts)
	}
}

func TestPipelineInvalidJob(t *testing.T) {
	pipeline := restyPipeline(t)
	ctx := context.Background()

	bad := []Job{
		{},
		{Seed: "/relative", ItemSelector: ".x", Fields: FieldSpec{{Name: "a", Selector: ".a", Mode: ModeSingle}}, MaxPages: 1},
		{Seed: "http://example.test/", ItemSelector: "p:bad(", Fields: FieldSpec{{Name: "a", Selector: ".a", Mode: ModeSingle}}, MaxPages: 1},
		{Seed: "http://example.test/", ItemSelector: ".x", Fields: FieldSpec{}, MaxPages: 1},
		{Seed: "http://example.test/", ItemSelector: ".x", Fields: FieldSpec{{Name: "a", Selector: ".a", Mode: ModeSingle}}, MaxPages: -1},
		{Seed: "http://example.test/", ItemSelector: ".x", Fields: FieldSpec{{Name: "a", Selector: ".a", Mode: ModeSingle}}, MaxPages: 1, Delay: -time.Second},
	}
	for _, job := range bad {
		session, err := pipeline.Run(ctx, job)
		require.Error(t, err)
		require.Nil(t, session)
	}
}
