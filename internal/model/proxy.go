package model

import (
	"errors"
	"io"
	"iter"
	"net/http"
	"sync"
)

// DefaultChunkSize is the read size used when relaying a response body.
const DefaultChunkSize = 32 * 1024

// InboundRequest is the caller's request as seen by the forwarder.
type InboundRequest struct {
	Method string
	Path   string
	// RawQuery is the encoded query string without the leading '?'.
	RawQuery string
	Header   HeaderSet
	// Body is nil when the request carries none.
	Body io.Reader
}

// NewInboundRequest snapshots r. The Host header, which net/http moves out
// of r.Header, is put back so the header set is complete.
func NewInboundRequest(r *http.Request) InboundRequest {
	header := HeaderSetFromHTTP(r.Header)
	if r.Host != "" && !header.Has("Host") {
		header.Add("Host", r.Host)
	}

	var body io.Reader
	if r.Body != nil && r.Body != http.NoBody {
		body = r.Body
	}

	return InboundRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		RawQuery: r.URL.RawQuery,
		Header:   header,
		Body:     body,
	}
}

// OutboundResponse is the upstream response to be relayed back to the caller.
// The caller must Close it.
type OutboundResponse struct {
	StatusCode int
	// StatusText is the reason phrase exactly as the upstream sent it.
	StatusText string
	Header     HeaderSet
	Body       *BodyStream
}

// Close releases the upstream body.
func (r *OutboundResponse) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// BodyStream is a lazily read response body. Close is safe to call more
// than once.
type BodyStream struct {
	rc        io.ReadCloser
	chunkSize int

	closeOnce sync.Once
	closeErr  error
}

// NewBodyStream wraps rc. A chunkSize <= 0 selects DefaultChunkSize.
func NewBodyStream(rc io.ReadCloser, chunkSize int) *BodyStream {
	if rc == nil {
		rc = http.NoBody
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &BodyStream{rc: rc, chunkSize: chunkSize}
}

// Read reads directly from the underlying body.
func (b *BodyStream) Read(p []byte) (int, error) {
	return b.rc.Read(p)
}

// Chunks yields the body in chunks of at most the configured size until EOF.
// A read error is yielded once with a nil chunk and ends the sequence. The
// yielded slice is reused and only valid until the next iteration.
func (b *BodyStream) Chunks() iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		buf := make([]byte, b.chunkSize)
		for {
			n, err := b.rc.Read(buf)
			if n > 0 {
				if !yield(buf[:n], nil) {
					return
				}
			}
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

// Close closes the underlying body.
func (b *BodyStream) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.rc.Close()
	})
	return b.closeErr
}
