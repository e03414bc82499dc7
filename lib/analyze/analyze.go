// Package analyze computes rankings and extremes over the records of
// a finished scrape.
package analyze

import (
	"sort"
	"webharvest/lib/scrape"
	"webharvest/lib/textutil"

	"github.com/antzucaro/matchr"
)

// similarity above which two key values are treated as the same entry
// spelled differently
const mergeThreshold = 0.95

type Options struct {
	// KeyField is the field the ranking is computed over.
	KeyField string
	// TextField is the field the shortest and longest entries are
	// picked from. Empty skips them.
	TextField string
	// Top caps the ranking length. Zero means 10.
	Top int
	// MergeSimilar folds near-identical key spellings into one entry.
	MergeSimilar bool
	// Ignore drops key values containing any of these lowercase
	// keywords from the ranking.
	Ignore []string
}

type Count struct {
	Value string
	Count int
}

type Report struct {
	Total    int
	Pages    int
	TopKeys  []Count
	TopTags  []Count
	Shortest string
	Longest  string
}

// Session ranks key values and tags by frequency and finds the
// shortest and longest text. Ties rank alphabetically so repeated runs
// give identical reports.
func Session(session *scrape.Session, opts Options) Report {
	if opts.Top <= 0 {
		opts.Top = 10
	}

	report := Report{
		Total: len(session.Records),
		Pages: session.Pages,
	}

	keys := newCounter(opts.MergeSimilar)
	tags := newCounter(false)
	placeholder := "No " + opts.TextField

	for _, record := range session.Records {
		if value, ok := record.Get(opts.KeyField); ok {
			key := value.String()
			if !textutil.ContainsAny(key, opts.Ignore) {
				keys.add(key)
			}
		}
		for _, tag := range record.Tags {
			tags.add(tag)
		}

		if opts.TextField == "" {
			continue
		}
		value, ok := record.Get(opts.TextField)
		if !ok {
			continue
		}
		text := value.String()
		if text == "" || text == placeholder {
			continue
		}
		if report.Shortest == "" || len(text) < len(report.Shortest) {
			report.Shortest = text
		}
		if len(text) > len(report.Longest) {
			report.Longest = text
		}
	}

	report.TopKeys = keys.top(opts.Top)
	report.TopTags = tags.top(opts.Top)
	return report
}

// counter tallies values, optionally folding in values that are nearly
// identical to one it has already seen.
type counter struct {
	counts map[string]int
	order  []string
	merge  bool
}

func newCounter(merge bool) *counter {
	return &counter{counts: map[string]int{}, merge: merge}
}

func (c *counter) add(value string) {
	if value == "" {
		return
	}
	canonical := value
	if c.merge {
		canonical = c.canonicalize(value)
	}
	if _, seen := c.counts[canonical]; !seen {
		c.order = append(c.order, canonical)
	}
	c.counts[canonical]++
}

// canonicalize compares normalized spellings so case and whitespace
// differences never split an entry, then returns the first-seen
// original as the display value.
func (c *counter) canonicalize(value string) string {
	if _, seen := c.counts[value]; seen {
		return value
	}

	normalized := textutil.Normalize(value)
	var mostSimilarity float64
	var mostSimilar string
	for _, existing := range c.order {
		similarity := matchr.JaroWinkler(normalized, textutil.Normalize(existing), false)
		if similarity > mostSimilarity {
			mostSimilarity = similarity
			mostSimilar = existing
		}
	}
	if mostSimilarity >= mergeThreshold {
		return mostSimilar
	}
	return value
}

func (c *counter) top(n int) []Count {
	out := make([]Count, 0, len(c.order))
	for _, value := range c.order {
		out = append(out, Count{Value: value, Count: c.counts[value]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
