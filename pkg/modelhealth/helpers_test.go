package modelhealth

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeService is an in-process stand-in for the Model Health API. It counts every
// request it receives, routed or not.
type fakeService struct {
	t     *testing.T
	mux   *http.ServeMux
	srv   *httptest.Server
	calls atomic.Int32
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{t: t, mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) handle(pattern string, handler http.HandlerFunc) {
	f.mux.HandleFunc(pattern, handler)
}

// respond registers a handler that always writes body with status.
func (f *fakeService) respond(pattern string, status int, body string) {
	f.handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (f *fakeService) url(path string) string {
	return f.srv.URL + path
}

func (f *fakeService) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBaseURL(f.srv.URL),
		WithLogger(log.New(testWriter{t}, "", 0)),
	}
	c, err := New("test-key", append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body
}

func strPtr(v string) *string { return &v }

type testWriter struct {
	t *testing.T
}

func (tw testWriter) Write(p []byte) (int, error) {
	tw.t.Log(string(p))
	return len(p), nil
}
