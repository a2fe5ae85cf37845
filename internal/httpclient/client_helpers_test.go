package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient returns a Client closed at test cleanup. A nil cfg uses
// DefaultConfig.
func newTestClient(t *testing.T, cfg *Config) *Client {
	t.Helper()
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	client := New(cfg)
	t.Cleanup(client.Close)
	return client
}

// newClassifierStub stands in for the classifier service.
func newClassifierStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func closeBody(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp == nil || resp.Body == nil {
		return
	}
	if err := resp.Body.Close(); err != nil {
		t.Logf("closing response body: %v", err)
	}
}
