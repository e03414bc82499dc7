// Package sink turns finished scrape sessions into output: json and
// csv exports plus a human readable summary.
package sink

import (
	"fmt"
	"webharvest/lib/scrape"
)

// Sink consumes one finished session. Implementations must not modify
// the session.
type Sink interface {
	Write(session *scrape.Session) error
}

type multiSink []Sink

// MultiSink fans a session out to every sink in order. The first
// failure stops the fan-out, output already written to earlier sinks
// stays intact.
func MultiSink(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Write(session *scrape.Session) error {
	for _, s := range m {
		if err := s.Write(session); err != nil {
			return fmt.Errorf("%T: %w", s, err)
		}
	}
	return nil
}
