package sink

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"webharvest/lib/scrape"
)

// CsvSink writes one row per record. The header is the field names in
// extraction order followed by tags and page, list values are joined
// with a comma and space inside their cell.
type CsvSink struct {
	out    io.Writer
	fields []string
}

func NewCsvSink(out io.Writer, fields []string) *CsvSink {
	return &CsvSink{out: out, fields: fields}
}

func (s *CsvSink) Write(session *scrape.Session) error {
	w := csv.NewWriter(s.out)

	header := make([]string, 0, len(s.fields)+2)
	header = append(header, s.fields...)
	header = append(header, "tags", "page")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, record := range session.Records {
		row := make([]string, 0, len(header))
		for _, name := range s.fields {
			value, _ := record.Get(name)
			row = append(row, value.String())
		}
		row = append(row, strings.Join(record.Tags, ", "), strconv.Itoa(record.Page))
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
