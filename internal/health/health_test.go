package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func serve(t *testing.T, h *Handler, path string, ctx context.Context) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	req := httptest.NewRequest(http.MethodGet, path, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "never", Check: func(context.Context) error { return errors.New("down") }})
	code, body := serve(t, h, "/healthz", context.Background())
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("got %d %q, want 200 ok", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	pass := Checker{Name: "player_bank", Check: func(context.Context) error { return nil }}
	fail := Checker{Name: "interaction_bank", Check: func(context.Context) error { return errors.New("not captured") }}

	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checkers:   []Checker{pass},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"player_bank": "ok"},
		},
		{
			name:       "one fails",
			checkers:   []Checker{pass, fail},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]string{"player_bank": "ok", "interaction_bank": "fail: not captured"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, New(tt.checkers...), "/readyz", context.Background())
			if code != tt.wantCode || body.Status != tt.wantStatus {
				t.Errorf("got %d %q, want %d %q", code, body.Status, tt.wantCode, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if body.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, body.Checks[name], want)
				}
			}
		})
	}
}

func TestProbe(t *testing.T) {
	t.Parallel()

	var ready atomic.Bool
	h := New(Probe("player_bank", ready.Load, "player bank not captured"))

	code, body := serve(t, h, "/readyz", context.Background())
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if got := body.Checks["player_bank"]; got != "fail: player bank not captured" {
		t.Errorf("check = %q", got)
	}

	ready.Store(true)
	if code, _ := serve(t, h, "/readyz", context.Background()); code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

func TestProbe_CancelledContext(t *testing.T) {
	t.Parallel()

	h := New(Probe("player_bank", func() bool { return true }, "unused"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code, _ := serve(t, h, "/readyz", ctx); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
}
