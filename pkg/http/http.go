// Package http is the fluent outgoing HTTP client used for carrier, payment
// and alerting calls. Retries are delegated to pkg/retry.
//
//	resp, err := http.Post(url).
//	    Bearer(key).
//	    Form(values).
//	    Timeout(5 * time.Second).
//	    Retry(3, time.Second).
//	    WithContext(ctx).
//	    Send()
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	gohttp "net/http"
	"net/url"
	"time"

	"github.com/shashiranjanraj/eshop/pkg/logger"
	"github.com/shashiranjanraj/eshop/pkg/metrics"
	"github.com/shashiranjanraj/eshop/pkg/retry"
)

var defaultTransport = &gohttp.Transport{
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 20,
	IdleConnTimeout:     90 * time.Second,
}

// DefaultClient is shared by every outgoing request. Tests swap its
// Transport and call ResetTransport when done.
var DefaultClient = &gohttp.Client{Transport: defaultTransport}

// ResetTransport restores the production transport on DefaultClient.
func ResetTransport() {
	DefaultClient.Transport = defaultTransport
}

// Request is a fluent HTTP request builder.
type Request struct {
	method  string
	url     string
	headers map[string]string
	body    interface{}
	policy  retry.Policy
	ctx     context.Context
}

func Get(url string) *Request    { return newRequest(gohttp.MethodGet, url) }
func Post(url string) *Request   { return newRequest(gohttp.MethodPost, url) }
func Put(url string) *Request    { return newRequest(gohttp.MethodPut, url) }
func Delete(url string) *Request { return newRequest(gohttp.MethodDelete, url) }

func newRequest(method, url string) *Request {
	return &Request{
		method:  method,
		url:     url,
		headers: map[string]string{"Accept": "application/json"},
		policy: retry.Policy{
			MaxAttempts:    1,
			InitialBackoff: 500 * time.Millisecond,
			Timeout:        30 * time.Second,
		},
		ctx: context.Background(),
	}
}

func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Bearer sets the Authorization: Bearer <token> header.
func (r *Request) Bearer(token string) *Request {
	return r.Header("Authorization", "Bearer "+token)
}

// Body sets the request body. Structs and maps are sent as JSON, string and
// []byte as-is, url.Values as a form.
func (r *Request) Body(v interface{}) *Request {
	r.body = v
	return r
}

// Form sends values as application/x-www-form-urlencoded.
func (r *Request) Form(values url.Values) *Request {
	r.body = values
	return r
}

// XML sends raw as application/xml.
func (r *Request) XML(raw []byte) *Request {
	r.body = xmlBody(raw)
	return r
}

// Timeout sets the per-attempt timeout.
func (r *Request) Timeout(d time.Duration) *Request {
	r.policy.Timeout = d
	return r
}

// Retry sets n total attempts with wait as the initial backoff.
func (r *Request) Retry(n int, wait time.Duration) *Request {
	r.policy.MaxAttempts = n
	r.policy.InitialBackoff = wait
	return r
}

// RetryIf replaces the retry classification.
func (r *Request) RetryIf(pred retry.Predicate) *Request {
	r.policy.Retryable = pred
	return r
}

// Policy replaces the whole retry policy, keeping OnRetry logging.
func (r *Request) Policy(p retry.Policy) *Request {
	r.policy = p
	return r
}

func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// Send executes the request under the retry policy. The last response is
// returned even when its status is a failure, so callers can read error
// bodies; err is non-nil only when no response was obtained or ctx ended.
func (r *Request) Send() (*Response, error) {
	policy := r.policy
	host := hostOf(r.url)
	userOnRetry := policy.OnRetry
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		metrics.RetryAttempts.WithLabelValues(host).Inc()
		logger.WithCtx(r.ctx).Warn("http: request failed, retrying",
			"method", r.method, "url", r.url, "attempt", attempt, "backoff", wait, "error", err)
		if userOnRetry != nil {
			userOnRetry(attempt, wait, err)
		}
	}

	var last *Response
	err := retry.Do(r.ctx, policy, func(ctx context.Context) (int, error) {
		resp, err := r.do(ctx)
		if err != nil {
			return 0, err
		}
		last = resp
		return resp.StatusCode, nil
	})

	if last != nil && r.ctx.Err() == nil {
		return last, nil
	}
	return nil, fmt.Errorf("http: %s %s: %w", r.method, r.url, err)
}

func (r *Request) do(ctx context.Context) (*Response, error) {
	body, ct, err := r.buildBody()
	if err != nil {
		return nil, err
	}

	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}

	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	resp, err := DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Raw: raw}, nil
}

type xmlBody []byte

// buildBody is called per attempt so every retry gets a fresh reader.
func (r *Request) buildBody() (io.Reader, string, error) {
	switch v := r.body.(type) {
	case nil:
		return nil, "", nil
	case xmlBody:
		return bytes.NewReader(v), "application/xml; charset=utf-8", nil
	case url.Values:
		return bytes.NewBufferString(v.Encode()), "application/x-www-form-urlencoded", nil
	case string:
		return bytes.NewBufferString(v), "text/plain", nil
	case []byte:
		return bytes.NewReader(v), "application/octet-stream", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("http: marshal body: %w", err)
		}
		return bytes.NewReader(b), "application/json", nil
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON unmarshals the response body into dest.
func (r *Response) JSON(dest interface{}) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

func (r *Response) Text() string { return string(r.Raw) }

// Throw returns an error if the response status is not 2xx.
func (r *Response) Throw() error {
	if !r.OK() {
		return fmt.Errorf("http: request failed with status %d: %s", r.StatusCode, string(r.Raw))
	}
	return nil
}
