// Package service implements the core request forwarding logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"inbox-gateway/internal/config"
	"inbox-gateway/internal/model"
)

// ErrUpstreamUnreachable matches every error returned when the upstream
// exchange could not complete and no response exists.
var ErrUpstreamUnreachable = errors.New("upstream unreachable")

// UpstreamError describes an upstream call that produced no response:
// connection refused, DNS failure, timeout, or a canceled caller.
type UpstreamError struct {
	Method string
	URL    string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes every UpstreamError match ErrUpstreamUnreachable.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamUnreachable }

// Timeout reports whether the call failed because a deadline elapsed.
func (e *UpstreamError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Upstream performs a single HTTP exchange with the upstream API. It must not
// follow redirects.
type Upstream interface {
	Do(req *http.Request) (*http.Response, error)
}

// Header names the forwarder treats specially.
const (
	headerHost          = "Host"
	headerContentLength = "Content-Length"
	headerCookie        = "Cookie"
	headerSetCookie     = "Set-Cookie"
	headerUserAgent     = "User-Agent"
)

// Forwarder relays one inbound request to the upstream and hands back its
// response. It holds no per-request state and is safe for concurrent use.
type Forwarder struct {
	upstream Upstream
	logger   *slog.Logger
	baseURL  *url.URL
}

// NewForwarder creates a Forwarder targeting cfg.Upstream.BaseURL.
func NewForwarder(up Upstream, cfg *config.Config, logger *slog.Logger) (*Forwarder, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q is not an absolute URL", cfg.Upstream.BaseURL)
	}

	return &Forwarder{
		upstream: up,
		logger:   logger.With("component", "forwarder"),
		baseURL:  u,
	}, nil
}

// BaseURL returns the upstream base address.
func (f *Forwarder) BaseURL() string {
	return f.baseURL.String()
}

// Forward sends in to upstreamPath on the upstream and returns the response
// with its status, status text and headers intact and its body unread.
// The caller must Close the response.
//
// Upstream error statuses are returned as responses, not errors. An error is
// returned only when no response exists; if the exchange itself failed it
// matches ErrUpstreamUnreachable.
func (f *Forwarder) Forward(ctx context.Context, in model.InboundRequest, upstreamPath string) (*model.OutboundResponse, error) {
	target, err := f.upstreamURL(upstreamPath, in.RawQuery)
	if err != nil {
		return nil, err
	}

	body, err := requestBody(in)
	if err != nil {
		return nil, fmt.Errorf("read inbound body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, in.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = requestHeaders(in.Header)

	f.logger.Debug("forwarding request",
		"method", in.Method,
		"path", in.Path,
		"upstream_path", upstreamPath,
	)

	resp, err := f.upstream.Do(req)
	if err != nil {
		return nil, &UpstreamError{Method: in.Method, URL: target, Err: err}
	}

	return &model.OutboundResponse{
		StatusCode: resp.StatusCode,
		StatusText: statusText(resp),
		Header:     responseHeaders(resp.Header),
		Body:       model.NewBodyStream(resp.Body, 0),
	}, nil
}

// upstreamURL resolves upstreamPath against the base address. An already
// escaped path is kept as is; rawQuery is appended to any query in the path.
func (f *Forwarder) upstreamURL(upstreamPath, rawQuery string) (string, error) {
	ref, err := url.Parse(upstreamPath)
	if err != nil {
		return "", fmt.Errorf("parse upstream path %q: %w", upstreamPath, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("upstream path %q must be relative", upstreamPath)
	}

	u := f.baseURL.ResolveReference(ref)
	switch {
	case rawQuery == "":
	case u.RawQuery == "":
		u.RawQuery = rawQuery
	default:
		u.RawQuery += "&" + rawQuery
	}
	return u.String(), nil
}

// requestBody returns nil for GET and HEAD and for empty bodies, so the
// upstream sees no body rather than an empty one.
func requestBody(in model.InboundRequest) (io.Reader, error) {
	if in.Method == http.MethodGet || in.Method == http.MethodHead || in.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return bytes.NewReader(data), nil
}

// requestHeaders copies every inbound field except Host and Content-Length,
// which the transport recomputes for the new connection.
func requestHeaders(src model.HeaderSet) http.Header {
	dst := make(http.Header, src.Len())
	for name, value := range src.All() {
		if strings.EqualFold(name, headerHost) || strings.EqualFold(name, headerContentLength) {
			continue
		}
		dst.Add(name, value)
	}

	if cookies := src.Values(headerCookie); len(cookies) > 0 {
		dst[headerCookie] = cookies
	}

	// An empty User-Agent keeps net/http from sending its own default.
	if _, ok := dst[headerUserAgent]; !ok {
		dst[headerUserAgent] = []string{""}
	}
	return dst
}

// responseHeaders copies the upstream header, then appends every Set-Cookie
// value as its own field. Keys are matched case-insensitively so a cookie
// stored under a non-canonical key is not lost.
func responseHeaders(src http.Header) model.HeaderSet {
	var cookies []string
	rest := make(http.Header, len(src))
	for name, vals := range src {
		if strings.EqualFold(name, headerSetCookie) {
			cookies = append(cookies, vals...)
			continue
		}
		rest[name] = vals
	}

	hs := model.HeaderSetFromHTTP(rest)
	for _, c := range cookies {
		hs.Add(headerSetCookie, c)
	}
	return hs
}

// statusText extracts the reason phrase from resp.Status ("404 Not Found").
func statusText(resp *http.Response) string {
	if text, ok := strings.CutPrefix(resp.Status, strconv.Itoa(resp.StatusCode)); ok {
		return strings.TrimPrefix(text, " ")
	}
	return resp.Status
}
