package scrape

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const quotesPage = `
<html>
<head><title>  Quotes to Scrape </title></head>
<body>
	<div class="quote">
		<span class="text">The world as we have created it is a process of our thinking.</span>
		<small class="author">Albert Einstein</small>
		<div class="tags">
			<a class="tag" href="/tag/change/">change</a>
			<a class="tag" href="/tag/thinking/">deep-thoughts</a>
		</div>
	</div>
	<div class="quote">
		<span class="text">It is our choices that show what we truly are.</span>
		<small class="author">J.K. Rowling</small>
		<div class="tags"></div>
	</div>
	<nav><li class="next"><a href="/page/2/">Next</a></li></nav>
</body>
</html>`

func TestDocumentSelect(t *testing.T) {
	doc, err := ParseDocument([]byte(quotesPage), "http://example.test/")
	if err != nil {
		t.Fatal(err)
	}

	items := doc.SelectAll(".quote")
	require.Len(t, items, 2)

	author, ok := items[0].SelectFirst(".author")
	require.True(t, ok)
	require.Equal(t, "Albert Einstein", author.Text())

	// selections are scoped to their subtree
	tags := items[1].SelectAll(".tag")
	require.Len(t, tags, 0)

	_, ok = doc.SelectFirst(".does-not-exist")
	require.False(t, ok)

	require.Equal(t, "Quotes to Scrape", doc.Title())
}

func TestDocumentResolve(t *testing.T) {
	doc, err := ParseDocument([]byte(quotesPage), "http://example.test/")
	if err != nil {
		t.Fatal(err)
	}

	next, ok := doc.SelectFirst("li.next > a")
	require.True(t, ok)

	href, ok := next.Attr("href")
	require.True(t, ok)
	require.Equal(t, "/page/2/", href)

	resolved, err := doc.Resolve(href)
	require.NoError(t, err)
	require.Equal(t, "http://example.test/page/2/", resolved)

	absolute, err := doc.Resolve("https://other.test/x")
	require.NoError(t, err)
	require.Equal(t, "https://other.test/x", absolute)
}

func TestDocumentAnchors(t *testing.T) {
	doc, err := ParseDocument([]byte(quotesPage), "http://example.test/")
	if err != nil {
		t.Fatal(err)
	}

	anchors := doc.Anchors(".tag")
	require.Len(t, anchors, 2)
	require.Equal(t, "change", anchors[0].Name)
	require.Equal(t, "http://example.test/tag/change/", anchors[0].Url.String())
}
