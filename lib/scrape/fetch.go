package scrape

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"
)

// FaultKind tells callers what class of failure ended a fetch, so a
// pipeline can report "timed out" vs "server returned 500" without
// string-matching error text.
type FaultKind int

const (
	// FaultOther covers failures that fit none of the kinds below.
	FaultOther FaultKind = iota
	// FaultTimeout means the request exceeded its deadline.
	FaultTimeout
	// FaultConnection means the server could not be reached at all.
	FaultConnection
	// FaultStatus means the server answered with a non-2xx status.
	FaultStatus
)

func (k FaultKind) String() string {
	switch k {
	case FaultTimeout:
		return "timeout"
	case FaultConnection:
		return "connection"
	case FaultStatus:
		return "http status"
	default:
		return "other"
	}
}

// Fault is a classified fetch failure. Status is only meaningful when
// Kind is FaultStatus.
type Fault struct {
	Kind   FaultKind
	Url    string
	Status int
	Err    error
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultStatus:
		return fmt.Sprintf("fetch %s: status %d %s", f.Url, f.Status, http.StatusText(f.Status))
	default:
		return fmt.Sprintf("fetch %s: %s: %v", f.Url, f.Kind, f.Err)
	}
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func statusFault(url string, status int) *Fault {
	return &Fault{
		Kind:   FaultStatus,
		Url:    url,
		Status: status,
		Err:    fmt.Errorf("status %d %s", status, http.StatusText(status)),
	}
}

// Classify wraps err in a Fault for url, inspecting the error chain to
// pick the kind. Errors that are already Faults pass through unchanged.
func Classify(url string, err error) *Fault {
	var fault *Fault
	if errors.As(err, &fault) {
		return fault
	}

	kind := FaultOther
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		kind = FaultTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = FaultTimeout
	default:
		var dnsErr *net.DNSError
		var opErr *net.OpError
		if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
			kind = FaultConnection
		}
	}
	return &Fault{Kind: kind, Url: url, Err: err}
}

// Response is a successful fetch. Url is the final URL after any
// redirects, which later link resolution has to be based on.
type Response struct {
	Status int
	Body   []byte
	Url    string
}

// Fetcher retrieves a single page. Implementations return a *Fault for
// every failure, including non-2xx statuses.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, timeout time.Duration) (*Response, *Fault)
}
