package transcriber

import (
	"context"
	"net/http"
	"time"
)

// Options selects per-invocation pipeline behavior.
type Options struct {
	// Refine runs the second stage (grammar/filler cleanup) on the raw
	// transcript. When false the pipeline is transcription only.
	Refine bool
}

// Result carries the pipeline output. Raw is always set on success; Refined
// is set iff the refinement stage ran. When the refinement service returns
// no usable content, Refined falls back to Raw rather than failing.
type Result struct {
	Raw     string
	Refined string
}

// Pipeline is the stateless two-stage transcription pipeline. It performs no
// retries; retrying is the caller's concern and re-invokes Process from
// scratch.
type Pipeline interface {
	Process(ctx context.Context, audio []byte, opts Options) (Result, error)
}

// NetworkMetrics captures per-request timing, collected via httptrace.
type NetworkMetrics struct {
	DNS         time.Duration
	ConnWait    time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
