// Package restyutil dumps full request/response transcripts of a
// resty client to disk. Transcripts answer the "what html did the
// selector actually run against" question that logs and spans cannot.
package restyutil

import (
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// InstrumentOutput receives one rendered transcript per exchange. The
// id is a counter starting at 1, unique per client.
type InstrumentOutput interface {
	Write(id string, contents string)
}

// InstrumentClient writes a transcript of every exchange to output,
// failed requests included. A nil output makes this a no-op. Tracing
// stays the job of telemetry.InstrumentResty, the two don't overlap.
func InstrumentClient(client *resty.Client, output InstrumentOutput) {
	if output == nil {
		return
	}

	var idcounter uint64
	nextId := func() string {
		return strconv.FormatUint(atomic.AddUint64(&idcounter, 1), 10)
	}

	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		id := nextId()
		output.Write(id, formatHttpMessage(res))
		slog.Debug("wrote http transcript",
			"method", res.Request.Method,
			"url", res.Request.URL,
			"message_id", id,
		)
		return nil
	})
	client.OnError(func(req *resty.Request, err error) {
		id := nextId()
		output.Write(id, formatFailedRequest(req, err))
		slog.Debug("wrote failed request transcript",
			"method", req.Method,
			"url", req.URL,
			"message_id", id,
		)
	})
}
