package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/desertthunder/tunesync/internal/shared"
)

func instantSleep(delays *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestClientDo(t *testing.T) {
	t.Run("Sends Bearer Token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("Authorization"); got != "Bearer test_token" {
				t.Errorf("expected bearer token, got %q", got)
			}
			fmt.Fprint(w, `{"ok":true}`)
		}))
		defer server.Close()

		client := NewClient(func(context.Context) (string, error) { return "test_token", nil }, nil)

		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
	})

	t.Run("Retries 429 Honoring Retry After", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests == 1 {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{"ok":true}`)
		}))
		defer server.Close()

		var delays []time.Duration
		client := NewClient(nil, nil, WithSleep(instantSleep(&delays)))

		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200 after retry, got %d", resp.StatusCode)
		}
		if requests != 2 {
			t.Errorf("expected 2 requests, got %d", requests)
		}
		if len(delays) != 1 || delays[0] != 3*time.Second {
			t.Errorf("expected one 3s wait from Retry-After, got %v", delays)
		}
	})

	t.Run("Exhausted Retries Surface Rate Limit", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		var delays []time.Duration
		client := NewClient(nil, nil, WithSleep(instantSleep(&delays)))

		_, err := client.Get(context.Background(), server.URL)
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
		if requests != DefaultRetryPolicy().MaxAttempts {
			t.Errorf("expected %d attempts, got %d", DefaultRetryPolicy().MaxAttempts, requests)
		}
		// No wait after the last attempt; there is nothing left to retry
		if len(delays) != DefaultRetryPolicy().MaxAttempts-1 {
			t.Errorf("expected %d waits, got %d", DefaultRetryPolicy().MaxAttempts-1, len(delays))
		}
	})

	t.Run("Transport Failure After Rate Limits Surfaces Error", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests < DefaultRetryPolicy().MaxAttempts {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			// Drop the connection so the final attempt fails at the
			// transport layer with no response to inspect
			conn, _, err := w.(http.Hijacker).Hijack()
			if err != nil {
				t.Fatalf("hijack failed: %v", err)
			}
			conn.Close()
		}))
		defer server.Close()

		var delays []time.Duration
		client := NewClient(nil, nil,
			WithSleep(instantSleep(&delays)),
			WithHTTPClient(&http.Client{Transport: &http.Transport{DisableKeepAlives: true}}),
		)

		resp, err := client.Get(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected an error from the dropped connection")
		}
		if resp != nil {
			t.Errorf("expected nil response, got %+v", resp)
		}
		if requests != DefaultRetryPolicy().MaxAttempts {
			t.Errorf("expected %d requests, got %d", DefaultRetryPolicy().MaxAttempts, requests)
		}
	})

	t.Run("Retries Server Errors", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			if requests < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		var delays []time.Duration
		client := NewClient(nil, nil, WithSleep(instantSleep(&delays)))

		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if requests != 3 {
			t.Errorf("expected 3 requests, got %d", requests)
		}
	})

	t.Run("Client Errors Do Not Retry", func(t *testing.T) {
		requests := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}))
		defer server.Close()

		client := NewClient(nil, nil)

		_, err := client.Get(context.Background(), server.URL)
		if !IsStatus(err, http.StatusNotFound) {
			t.Errorf("expected a 404 StatusError, got %v", err)
		}
		if requests != 1 {
			t.Errorf("expected exactly one request, got %d", requests)
		}
	})

	t.Run("Transport Errors Are Bounded", func(t *testing.T) {
		// Closed server: every attempt is a connection error
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		var delays []time.Duration
		client := NewClient(nil, nil, WithSleep(instantSleep(&delays)))

		_, err := client.Get(context.Background(), server.URL)
		if err == nil {
			t.Fatal("expected transport error")
		}
		if len(delays) != DefaultRetryPolicy().TransportRetries {
			t.Errorf("expected %d transport retries, got %d", DefaultRetryPolicy().TransportRetries, len(delays))
		}
	})

	t.Run("Posts JSON Body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected JSON content type, got %q", ct)
			}
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body["name"] != "Road Trip" {
				t.Errorf("unexpected body: %v", body)
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"p1"}`)
		}))
		defer server.Close()

		client := NewClient(nil, nil)

		resp, err := client.Post(context.Background(), server.URL, map[string]string{"name": "Road Trip"})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}

		var out struct {
			ID string `json:"id"`
		}
		if err := resp.Decode(&out); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if out.ID != "p1" {
			t.Errorf("expected id p1, got %s", out.ID)
		}
	})
}

func TestRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	t.Run("Retry After Seconds", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "10")
		if d := policy.retryDelay(0, h); d != 10*time.Second {
			t.Errorf("expected 10s, got %v", d)
		}
	})

	t.Run("Retry After Capped", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "600")
		if d := policy.retryDelay(0, h); d != policy.MaxDelay {
			t.Errorf("expected cap at %v, got %v", policy.MaxDelay, d)
		}
	})

	t.Run("Rate Limit Reset Delta", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Reset", "5")
		if d := policy.retryDelay(0, h); d != 5*time.Second {
			t.Errorf("expected 5s, got %v", d)
		}
	})

	t.Run("Rate Limit Reset Epoch", func(t *testing.T) {
		h := http.Header{}
		h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(8*time.Second).Unix(), 10))
		d := policy.retryDelay(0, h)
		if d < 6*time.Second || d > 9*time.Second {
			t.Errorf("expected roughly 8s, got %v", d)
		}
	})

	t.Run("Backoff Grows With Jitter", func(t *testing.T) {
		for attempt := 0; attempt < 4; attempt++ {
			base := policy.BaseDelay << uint(attempt)
			d := policy.backoff(attempt)
			if d < time.Duration(float64(base)*0.75) || d > time.Duration(float64(base)*1.25) {
				t.Errorf("attempt %d: backoff %v outside jitter window around %v", attempt, d, base)
			}
		}
	})

	t.Run("Backoff Capped", func(t *testing.T) {
		if d := policy.backoff(30); d > time.Duration(float64(policy.MaxDelay)*1.25) {
			t.Errorf("expected backoff capped near %v, got %v", policy.MaxDelay, d)
		}
	})
}

func TestPaginator(t *testing.T) {
	type envelope struct {
		Items []string `json:"items"`
		Next  string   `json:"next"`
	}

	parse := func(resp *Response) (Page[string], error) {
		var env envelope
		if err := resp.Decode(&env); err != nil {
			return Page[string]{}, err
		}
		return Page[string]{Items: env.Items, Next: env.Next}, nil
	}

	t.Run("Walks All Pages In Order", func(t *testing.T) {
		var server *httptest.Server
		failures := 0
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/page/1":
				json.NewEncoder(w).Encode(envelope{Items: []string{"a", "b"}, Next: server.URL + "/page/2"})
			case "/page/2":
				// One rate limit mid-walk: the page is replayed, not skipped
				if failures == 0 {
					failures++
					w.Header().Set("Retry-After", "1")
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				json.NewEncoder(w).Encode(envelope{Items: []string{"c"}, Next: server.URL + "/page/3"})
			case "/page/3":
				json.NewEncoder(w).Encode(envelope{Items: []string{"d"}})
			default:
				http.NotFound(w, r)
			}
		}))
		defer server.Close()

		var delays []time.Duration
		p := &Paginator[string]{
			Client: NewClient(nil, nil, WithSleep(instantSleep(&delays))),
			First:  server.URL + "/page/1",
			Parse:  parse,
		}

		items, err := p.All(context.Background())
		if err != nil {
			t.Fatalf("pagination failed: %v", err)
		}

		want := []string{"a", "b", "c", "d"}
		if len(items) != len(want) {
			t.Fatalf("expected %d items, got %d", len(want), len(items))
		}
		for i, item := range items {
			if item != want[i] {
				t.Errorf("item %d: expected %s, got %s", i, want[i], item)
			}
		}
		if failures != 1 {
			t.Errorf("expected the rate limited page to be replayed once, got %d failures", failures)
		}
	})

	t.Run("Failed Page Wraps Fetch Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer server.Close()

		p := &Paginator[string]{
			Client: NewClient(nil, nil),
			First:  server.URL + "/page/1",
			Parse:  parse,
		}

		_, err := p.All(context.Background())
		if !errors.Is(err, shared.ErrFetchFailed) {
			t.Errorf("expected ErrFetchFailed, got %v", err)
		}
	})

	t.Run("Callback Error Stops Walk", func(t *testing.T) {
		requests := 0
		var server *httptest.Server
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests++
			json.NewEncoder(w).Encode(envelope{Items: []string{"a"}, Next: server.URL + "/more"})
		}))
		defer server.Close()

		p := &Paginator[string]{
			Client: NewClient(nil, nil),
			First:  server.URL,
			Parse:  parse,
		}

		wantErr := errors.New("stop")
		err := p.Each(context.Background(), func(string) error { return wantErr })
		if !errors.Is(err, wantErr) {
			t.Errorf("expected callback error, got %v", err)
		}
		if requests != 1 {
			t.Errorf("expected walk to stop after first page, got %d requests", requests)
		}
	})
}
