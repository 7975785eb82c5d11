package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	shophttp "github.com/shashiranjanraj/eshop/pkg/http"
)

// Responder produces the synthetic reply for one intercepted request.
type Responder func(req *http.Request, body []byte) (*http.Response, error)

// Call is one request seen by a MockTransport.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

type route struct {
	method  string
	prefix  string
	replies []Responder
	hits    int
}

// MockTransport implements http.RoundTripper. Requests are matched by method
// and URL prefix in registration order; a route with several responders
// plays them in sequence and repeats the last one.
//
//	mt := testkit.NewMockTransport(t)
//	mt.On("POST", "https://www.zasilkovna.cz/api/rest", testkit.Respond(503, ""), testkit.Respond(200, okXML))
type MockTransport struct {
	mu     sync.Mutex
	routes []*route
	calls  []Call
}

// NewMockTransport installs a MockTransport on the shared outgoing client
// and restores the real transport when t finishes.
func NewMockTransport(t testing.TB) *MockTransport {
	t.Helper()
	mt := &MockTransport{}
	shophttp.DefaultClient.Transport = mt
	t.Cleanup(shophttp.ResetTransport)
	return mt
}

// On registers replies for method + URL prefix. An empty method matches any.
func (mt *MockTransport) On(method, urlPrefix string, replies ...Responder) *MockTransport {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.routes = append(mt.routes, &route{method: method, prefix: urlPrefix, replies: replies})
	return mt
}

func (mt *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}

	mt.mu.Lock()
	mt.calls = append(mt.calls, Call{Method: req.Method, URL: req.URL.String(), Header: req.Header.Clone(), Body: body})

	var reply Responder
	for _, r := range mt.routes {
		if r.method != "" && !strings.EqualFold(r.method, req.Method) {
			continue
		}
		if !strings.HasPrefix(req.URL.String(), r.prefix) || len(r.replies) == 0 {
			continue
		}
		idx := r.hits
		if idx >= len(r.replies) {
			idx = len(r.replies) - 1
		}
		r.hits++
		reply = r.replies[idx]
		break
	}
	mt.mu.Unlock()

	if reply == nil {
		return nil, fmt.Errorf("testkit: unexpected outgoing HTTP call %s %s", req.Method, req.URL)
	}
	return reply(req, body)
}

// Calls returns a snapshot of every intercepted request.
func (mt *MockTransport) Calls() []Call {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	out := make([]Call, len(mt.calls))
	copy(out, mt.calls)
	return out
}

// Respond replies with status and body.
func Respond(status int, body string) Responder {
	return func(req *http.Request, _ []byte) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Request:    req,
		}, nil
	}
}

// Fail simulates a transport error (connection refused, reset, ...).
func Fail(err error) Responder {
	return func(*http.Request, []byte) (*http.Response, error) {
		return nil, err
	}
}
