package elastic

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"sync"
)

type recordedRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   string
}

// fakeCluster is an http.RoundTripper answering from a handler keyed by
// request host, recording every request it sees.
type fakeCluster struct {
	mu       sync.Mutex
	requests []recordedRequest
	handle   func(r *http.Request, body string) (*http.Response, error)
}

func (f *fakeCluster) RoundTrip(r *http.Request) (*http.Response, error) {
	var body []byte
	if r.Body != nil {
		body, _ = ioutil.ReadAll(r.Body)
	}

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{Method: r.Method, URL: r.URL.String(), Header: r.Header.Clone(), Body: string(body)})
	f.mu.Unlock()

	if err := r.Context().Err(); err != nil {
		return nil, err
	}
	return f.handle(r, string(body))
}

func (f *fakeCluster) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeCluster) urls() []string {
	var urls []string
	for _, r := range f.recorded() {
		urls = append(urls, r.Method+" "+r.URL)
	}
	return urls
}

func reply(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       ioutil.NopCloser(bytes.NewBufferString(body)),
	}
}

type refusedError struct{}

func (refusedError) Error() string   { return "connection refused" }
func (refusedError) Timeout() bool   { return false }
func (refusedError) Temporary() bool { return false }

func testConfig(hosts interface{}, cluster *fakeCluster) Config {
	cfg := DefaultConfig()
	cfg.Hosts = hosts
	cfg.Transport = cluster
	cfg.SniffOnConnectionFail = false
	return cfg
}
