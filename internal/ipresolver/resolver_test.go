package ipresolver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/evanofslack/dyndns-sync/internal/metrics"
)

func echoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestResolveFirstValidWins(t *testing.T) {
	// A dead endpoint, then a server error, then a good answer. The
	// chain must skip the failures and return the first parsable IP.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	failing := echoServer(t, http.StatusInternalServerError, "oops")
	good := echoServer(t, http.StatusOK, " 203.0.113.5\n")
	never := echoServer(t, http.StatusOK, "198.51.100.9")

	resolver := New([]string{dead.URL, failing.URL, good.URL, never.URL}, metrics.New(false))
	addr, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if addr.String() != "203.0.113.5" {
		t.Errorf("Resolve() = %s, want 203.0.113.5", addr)
	}
}

func TestResolveSkipsNonIPBody(t *testing.T) {
	garbage := echoServer(t, http.StatusOK, "<html>not an ip</html>")
	good := echoServer(t, http.StatusOK, "2001:db8::1")

	resolver := New([]string{garbage.URL, good.URL}, metrics.New(false))
	addr, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if addr.String() != "2001:db8::1" {
		t.Errorf("Resolve() = %s, want 2001:db8::1", addr)
	}
}

func TestResolveAllSourcesFail(t *testing.T) {
	failing := echoServer(t, http.StatusServiceUnavailable, "")
	garbage := echoServer(t, http.StatusOK, "not an ip")

	resolver := New([]string{failing.URL, garbage.URL}, metrics.New(false))
	if _, err := resolver.Resolve(context.Background()); !errors.Is(err, ErrNoPublicIP) {
		t.Errorf("Resolve() error = %v, want ErrNoPublicIP", err)
	}
}

func TestResolveNoCachingAcrossCalls(t *testing.T) {
	responses := []string{"203.0.113.5", "203.0.113.6"}
	count := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(responses[count]))
		count++
	}))
	t.Cleanup(server.Close)

	resolver := New([]string{server.URL}, metrics.New(false))
	first, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if first.String() != "203.0.113.5" || second.String() != "203.0.113.6" {
		t.Errorf("Resolve() = %s then %s, want fresh answer per call", first, second)
	}
}

func TestDefaultsIncludeDNSFallback(t *testing.T) {
	r := New(nil, metrics.New(false)).(*resolver)
	if len(r.sources) != len(defaultEndpoints)+1 {
		t.Fatalf("expected %d sources, got %d", len(defaultEndpoints)+1, len(r.sources))
	}
	last := r.sources[len(r.sources)-1]
	if _, ok := last.(*dnsSource); !ok {
		t.Errorf("expected dns source as last resort, got %T", last)
	}
}
