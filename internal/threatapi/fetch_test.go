package threatapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// slowServer отвечает через delay, но бросает запрос, если клиент ушел раньше.
func slowServer(t *testing.T, delay time.Duration, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_LatencyAboveTimeout(t *testing.T) {
	srv := slowServer(t, 2*time.Second, `{}`)
	timeout := 50 * time.Millisecond

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	start := time.Now()
	_, err := Fetch(context.Background(), http.DefaultClient, req, timeout)
	elapsed := time.Since(start)

	var tErr *TimeoutError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TimeoutError, got %T (%v)", err, err)
	}
	if tErr.Timeout != timeout {
		t.Errorf("timeout in error = %v, want %v", tErr.Timeout, timeout)
	}
	// t + ε: щедрый запас на планировщик CI
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("fetch returned after %v, expected close to %v", elapsed, timeout)
	}
}

func TestFetch_LatencyBelowTimeout(t *testing.T) {
	srv := slowServer(t, 10*time.Millisecond, `{"ok":true}`)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := Fetch(context.Background(), http.DefaultClient, req, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestFetch_SlowBodyIsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[`))
		w.(http.Flusher).Flush()
		select {
		case <-time.After(2 * time.Second):
			_, _ = w.Write([]byte(`]`))
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := Fetch(context.Background(), http.DefaultClient, req, 50*time.Millisecond)

	var tErr *TimeoutError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TimeoutError while reading body, got %T (%v)", err, err)
	}
}

func TestFetch_ParentCancelIsNotTimeout(t *testing.T) {
	srv := slowServer(t, 2*time.Second, `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := Fetch(ctx, http.DefaultClient, req, time.Second)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %T (%v)", err, err)
	}
	var tErr *TimeoutError
	if errors.As(err, &tErr) {
		t.Error("parent cancellation must not be reported as timeout")
	}
}

func TestFetch_UnreachableHostIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	_, err := Fetch(context.Background(), http.DefaultClient, req, time.Second)

	var nErr *NetworkError
	if !errors.As(err, &nErr) {
		t.Fatalf("expected *NetworkError, got %T (%v)", err, err)
	}
}

func TestFetch_DefaultTimeout(t *testing.T) {
	srv := slowServer(t, 0, `{}`)

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	if _, err := Fetch(context.Background(), http.DefaultClient, req, 0); err != nil {
		t.Fatalf("zero timeout should fall back to default, got %v", err)
	}
}
