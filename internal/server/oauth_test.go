package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tunesync/internal/shared"
)

type fakeExchanger struct {
	state         string
	exchangeErr   error
	exchangedCode string
}

func (f *fakeExchanger) State() string { return f.state }

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) error {
	f.exchangedCode = code
	return f.exchangeErr
}

func TestOAuthHandler(t *testing.T) {
	t.Run("Successful Callback", func(t *testing.T) {
		svc := &fakeExchanger{state: "nonce1"}
		handler := NewOAuthHandler(svc)

		req := httptest.NewRequest("GET", "/callback?code=code1&state=nonce1", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if svc.exchangedCode != "code1" {
			t.Errorf("expected code passed through, got %q", svc.exchangedCode)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Error("expected success page")
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Errorf("unexpected result error: %v", result.Error())
		}
	})

	t.Run("State Mismatch Rejected", func(t *testing.T) {
		svc := &fakeExchanger{state: "nonce1"}
		handler := NewOAuthHandler(svc)

		req := httptest.NewRequest("GET", "/callback?code=code1&state=forged", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if svc.exchangedCode != "" {
			t.Error("exchange should not run on state mismatch")
		}

		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrStateMismatch) {
			t.Errorf("expected state mismatch, got %v", result.Error())
		}
	})

	t.Run("Provider Denial Surfaces Error", func(t *testing.T) {
		svc := &fakeExchanger{state: "nonce1"}
		handler := NewOAuthHandler(svc)

		req := httptest.NewRequest("GET", "/callback?state=nonce1&error=access_denied&error_description=user+denied", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}

		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected auth failure, got %v", result.Error())
		}
	})

	t.Run("Second Callback Rejected", func(t *testing.T) {
		svc := &fakeExchanger{state: "nonce1"}
		handler := NewOAuthHandler(svc)

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, httptest.NewRequest("GET", "/callback?code=code1&state=nonce1", nil))

		second := httptest.NewRecorder()
		handler.ServeHTTP(second, httptest.NewRequest("GET", "/callback?code=code2&state=nonce1", nil))

		if second.Code != http.StatusBadRequest {
			t.Errorf("expected replay rejected, got %d", second.Code)
		}
		if svc.exchangedCode != "code1" {
			t.Errorf("expected only first code exchanged, got %q", svc.exchangedCode)
		}
	})

	t.Run("Exchange Failure Reported", func(t *testing.T) {
		svc := &fakeExchanger{state: "nonce1", exchangeErr: shared.ErrAuthFailed}
		handler := NewOAuthHandler(svc)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/callback?code=bad&state=nonce1", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}

		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected exchange error, got %v", result.Error())
		}
	})
}

func TestWaitForCallbackTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := WaitForCallback(ctx, "127.0.0.1:0", &fakeExchanger{state: "n"}, NewBasicRouter())
	if !errors.Is(err, shared.ErrTimeout) {
		t.Errorf("expected timeout, got %v", err)
	}
}
