package sink

import (
	"fmt"
	"io"
	"webharvest/lib/scrape"

	"github.com/jedib0t/go-pretty/v6/table"
)

const defaultSampleSize = 5

type SummaryOptions struct {
	// Fields are the columns shown for sampled records.
	Fields []string
	// KeyField is the field the distinct count runs over. Empty uses
	// the first field.
	KeyField string
	// First is how many leading records to sample. Zero means 5.
	First int
}

// SummarySink writes a short human readable report: counts, the stop
// reason and a table of the first few records.
type SummarySink struct {
	out  io.Writer
	opts SummaryOptions
}

func NewSummarySink(out io.Writer, opts SummaryOptions) *SummarySink {
	if opts.KeyField == "" && len(opts.Fields) > 0 {
		opts.KeyField = opts.Fields[0]
	}
	if opts.First <= 0 {
		opts.First = defaultSampleSize
	}
	return &SummarySink{out: out, opts: opts}
}

func (s *SummarySink) Write(session *scrape.Session) error {
	distinct := map[string]bool{}
	for _, record := range session.Records {
		value, ok := record.Get(s.opts.KeyField)
		if !ok {
			continue
		}
		distinct[value.String()] = true
	}

	_, err := fmt.Fprintf(s.out, "seed: %s\nrecords: %d\npages: %d\ndistinct %s: %d\nstopped: %s\n",
		session.Seed, len(session.Records), session.Pages,
		s.opts.KeyField, len(distinct), session.Reason)
	if err != nil {
		return err
	}
	if session.Fault != nil {
		if _, err := fmt.Fprintf(s.out, "fault: %s\n", session.Fault.Error()); err != nil {
			return err
		}
	}
	if len(session.Records) == 0 {
		return nil
	}

	sample := session.Records
	if len(sample) > s.opts.First {
		sample = sample[:s.opts.First]
	}

	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	header := table.Row{"#"}
	for _, name := range s.opts.Fields {
		header = append(header, name)
	}
	header = append(header, "page")
	t.AppendHeader(header)
	for i, record := range sample {
		row := table.Row{i + 1}
		for _, name := range s.opts.Fields {
			value, _ := record.Get(name)
			row = append(row, value.String())
		}
		row = append(row, record.Page)
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
	return nil
}
