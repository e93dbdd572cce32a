// Package httpapi exposes the controller over HTTP.
//
// Routes:
//
//	GET  /healthz               liveness
//	GET  /readyz                ready once both base banks are captured
//	GET  /metrics               Prometheus scrape endpoint
//	GET  /v1/slots              slot tokens, alphabetical
//	GET  /v1/example-config     example configuration file
//	GET  /v1/skins              merged swap configuration per skin
//	GET  /v1/skin               equipped skin and per-kind build state
//	POST /v1/skin               {"skin": N} equips skin N
//	POST /v1/scene              {"single": bool} reports a finished scene load
//	POST /v1/directories        {"path": "..."} registers a mod directory
//	POST /v1/plays/logging      {"enabled": bool} toggles play logging
//	POST /v1/play               {"kind": "player", "field": "jumpVocals"} plays a vocal
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/vocalswap/internal/bank"
	"github.com/MrWong99/vocalswap/internal/controller"
	"github.com/MrWong99/vocalswap/internal/health"
	"github.com/MrWong99/vocalswap/internal/observe"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
	"github.com/MrWong99/vocalswap/pkg/sfx"
	"github.com/MrWong99/vocalswap/pkg/sfx/memhost"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Host is the part of the in-process host the API drives directly.
type Host interface {
	Play(kind sfx.BankKind, field string) (*sfx.Instance, error)
	SpawnPlayer() bool
}

// Option configures a [Server].
type Option func(*Server)

// WithHost enables POST /v1/play and spawning the player on scene loads.
func WithHost(h Host) Option {
	return func(s *Server) { s.host = h }
}

// WithMetrics sets the metrics used by the request middleware. Defaults to
// [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler replaces the /metrics handler. Defaults to
// promhttp.Handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// Server serves the HTTP API.
type Server struct {
	ctl            *controller.Controller
	model          *swapconfig.Model
	host           Host
	metrics        *observe.Metrics
	metricsHandler http.Handler
	handler        http.Handler
}

// New creates a Server.
func New(ctl *controller.Controller, model *swapconfig.Model, opts ...Option) *Server {
	s := &Server{ctl: ctl, model: model}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}

	mux := http.NewServeMux()
	checks := make([]health.Checker, 0, len(sfx.Kinds))
	for _, kind := range sfx.Kinds {
		checks = append(checks, health.Probe(
			kind.String()+"_bank",
			func() bool { return ctl.Captured(kind) },
			kind.String()+" bank not captured",
		))
	}
	health.New(checks...).Register(mux)
	mux.Handle("GET /metrics", s.metricsHandler)

	mux.HandleFunc("GET /v1/slots", s.handleSlots)
	mux.HandleFunc("GET /v1/example-config", s.handleExampleConfig)
	mux.HandleFunc("GET /v1/skins", s.handleSkins)
	mux.HandleFunc("GET /v1/skin", s.handleGetSkin)
	mux.HandleFunc("POST /v1/skin", s.handlePostSkin)
	mux.HandleFunc("POST /v1/scene", s.handleScene)
	mux.HandleFunc("POST /v1/directories", s.handleDirectory)
	mux.HandleFunc("POST /v1/plays/logging", s.handlePlayLogging)
	mux.HandleFunc("POST /v1/play", s.handlePlay)

	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("httpapi: listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return fmt.Errorf("httpapi: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("httpapi: shutdown: %w", err)
	}
	return nil
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

type slotsResponse struct {
	Tokens []string `json:"tokens"`
}

func (s *Server) handleSlots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, slotsResponse{Tokens: s.ctl.SlotTokens()})
}

func (s *Server) handleExampleConfig(w http.ResponseWriter, _ *http.Request) {
	data, err := s.ctl.ExampleConfig()
	if errors.Is(err, bank.ErrMissingBaseBank) {
		writeError(w, http.StatusConflict, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.ctl.ExampleConfigName()+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type skinView struct {
	Skin string `json:"skin"`
	*swapconfig.SwapSpecSet
}

func (s *Server) handleSkins(w http.ResponseWriter, _ *http.Request) {
	sets := s.model.Snapshot()
	out := make([]skinView, 0, len(sets))
	for _, set := range sets {
		out = append(out, skinView{Skin: set.Skin.String(), SwapSpecSet: set})
	}
	writeJSON(w, http.StatusOK, out)
}

type skinStatus struct {
	Skin     string            `json:"skin,omitempty"`
	Equipped bool              `json:"equipped"`
	Ready    bool              `json:"ready"`
	Kinds    map[string]string `json:"kinds"`
}

func (s *Server) status() skinStatus {
	st := skinStatus{Ready: s.ctl.Ready(), Kinds: make(map[string]string, len(sfx.Kinds))}
	if skin, ok := s.ctl.Equipped(); ok {
		st.Skin, st.Equipped = skin.String(), true
	}
	for _, kind := range sfx.Kinds {
		st.Kinds[kind.String()] = s.ctl.State(kind).String()
	}
	return st
}

func (s *Server) handleGetSkin(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

type skinRequest struct {
	Skin *int `json:"skin"`
}

func (s *Server) handlePostSkin(w http.ResponseWriter, r *http.Request) {
	var req skinRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Skin == nil || *req.Skin < 0 {
		writeError(w, http.StatusBadRequest, errors.New("skin must be a non-negative integer"))
		return
	}
	s.ctl.OnSkinEquipped(r.Context(), *req.Skin)
	writeJSON(w, http.StatusOK, s.status())
}

type sceneRequest struct {
	Single *bool `json:"single"`
}

func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if r.ContentLength != 0 && !readJSON(w, r, &req) {
		return
	}
	single := req.Single == nil || *req.Single
	if single && s.host != nil && s.host.SpawnPlayer() {
		slog.Debug("httpapi: spawned player for scene load")
	}
	s.ctl.OnSceneLoaded(r.Context(), single)
	writeJSON(w, http.StatusOK, s.status())
}

type directoryRequest struct {
	Path string `json:"path"`
}

type directoryResponse struct {
	Path  string   `json:"path"`
	Skins []string `json:"skins"`
}

func (s *Server) handleDirectory(w http.ResponseWriter, r *http.Request) {
	var req directoryRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("path is required"))
		return
	}
	touched, err := s.ctl.OnDirectory(r.Context(), req.Path)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	resp := directoryResponse{Path: req.Path, Skins: make([]string, 0, len(touched))}
	for _, skin := range touched {
		resp.Skins = append(resp.Skins, skin.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

type loggingRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handlePlayLogging(w http.ResponseWriter, r *http.Request) {
	var req loggingRequest
	if !readJSON(w, r, &req) {
		return
	}
	if err := s.ctl.SetPlayLogging(req.Enabled); err != nil {
		writeError(w, http.StatusNotImplemented, err)
		return
	}
	writeJSON(w, http.StatusOK, loggingRequest{Enabled: s.ctl.PlayLogging()})
}

type playRequest struct {
	Kind  string `json:"kind"`
	Field string `json:"field"`
}

type playResponse struct {
	Instance string   `json:"instance"`
	Clips    []string `json:"clips"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if s.host == nil {
		writeError(w, http.StatusNotImplemented, errors.New("no host attached"))
		return
	}
	var req playRequest
	if !readJSON(w, r, &req) {
		return
	}
	kind, ok := sfx.ParseBankKind(req.Kind)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown bank kind %q", req.Kind))
		return
	}
	inst, err := s.host.Play(kind, req.Field)
	switch {
	case errors.Is(err, memhost.ErrNoBank):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, memhost.ErrUnknownField):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := playResponse{Instance: inst.Name, Clips: make([]string, 0, len(inst.Clips))}
	for _, c := range inst.Clips {
		resp.Clips = append(resp.Clips, c.Name)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

type errorResponse struct {
	Error string `json:"error"`
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("httpapi: encode response", "err", err)
	}
}
