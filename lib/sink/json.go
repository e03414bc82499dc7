package sink

import (
	"encoding/json"
	"io"
	"webharvest/lib/scrape"
)

// JsonSink writes records as an indented json array. Field keys keep
// the order they were extracted in.
type JsonSink struct {
	out io.Writer
}

func NewJsonSink(out io.Writer) *JsonSink {
	return &JsonSink{out: out}
}

func (s *JsonSink) Write(session *scrape.Session) error {
	records := session.Records
	if records == nil {
		records = []scrape.Record{}
	}
	enc := json.NewEncoder(s.out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
