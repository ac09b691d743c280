// Package server wires the HTTP surface: the Twilio voice webhooks, the
// call placement and business discovery APIs, staged audio, the live event
// feed, and operational endpoints.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/outreachlabs/hirecall/discovery"
	"github.com/outreachlabs/hirecall/engine"
	"github.com/outreachlabs/hirecall/feed"
	"github.com/outreachlabs/hirecall/staging"
	"github.com/outreachlabs/hirecall/telephony"
)

// AudioPath is the mount point for staged audio artifacts.
const AudioPath = "/audio/"

// Server is the hirecall HTTP server.
type Server struct {
	telephony *telephony.Provider
	store     *staging.Store
	hub       *feed.Hub
	discovery *discovery.Provider
	logger    *slog.Logger
	mux       *http.ServeMux
}

// Option configures the Server.
type Option func(*options)

type options struct {
	telephony *telephony.Provider
	store     *staging.Store
	hub       *feed.Hub
	discovery *discovery.Provider
	logger    *slog.Logger
}

// WithTelephony sets the telephony provider (required).
func WithTelephony(p *telephony.Provider) Option {
	return func(o *options) {
		o.telephony = p
	}
}

// WithStaging mounts the staged-audio store.
func WithStaging(s *staging.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithFeed mounts the live event feed.
func WithFeed(h *feed.Hub) Option {
	return func(o *options) {
		o.hub = h
	}
}

// WithDiscovery enables the business discovery API.
func WithDiscovery(d *discovery.Provider) Option {
	return func(o *options) {
		o.discovery = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates the server and registers all routes.
func New(opts ...Option) (*Server, error) {
	cfg := &options{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.telephony == nil {
		return nil, fmt.Errorf("telephony provider is required")
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	s := &Server{
		telephony: cfg.telephony,
		store:     cfg.store,
		hub:       cfg.hub,
		discovery: cfg.discovery,
		logger:    cfg.logger,
		mux:       http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.telephony.Register(s.mux)

	s.mux.HandleFunc("POST /calls", s.handlePlaceCall)
	s.mux.HandleFunc("GET /calls", s.handleListCalls)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	if s.store != nil {
		s.mux.Handle("GET "+AudioPath, http.StripPrefix(AudioPath, s.store.Handler()))
	}
	if s.hub != nil {
		s.mux.HandleFunc("GET /ws", s.hub.HandleWebSocket)
	}
	if s.discovery != nil {
		s.mux.HandleFunc("GET /places", s.handlePlaces)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// PlaceCallRequest asks for one outbound hiring-inquiry call.
type PlaceCallRequest struct {
	Phone    string                  `json:"phone"`
	Business engine.BusinessIdentity `json:"business"`
}

// PlaceCallResponse reports the placed call.
type PlaceCallResponse struct {
	CallID   string                  `json:"call_id"`
	Business engine.BusinessIdentity `json:"business"`
}

func (s *Server) handlePlaceCall(w http.ResponseWriter, r *http.Request) {
	var req PlaceCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.Phone == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("phone is required"))
		return
	}
	if req.Business.Role == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("business.role is required"))
		return
	}

	call, err := s.telephony.PlaceCall(r.Context(), req.Phone, req.Business)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, PlaceCallResponse{
		CallID:   call.ID(),
		Business: call.Business(),
	})
}

// CallSummary is the live view of one conversation.
type CallSummary struct {
	CallID   string                      `json:"call_id"`
	Business engine.BusinessIdentity     `json:"business"`
	State    string                      `json:"state"`
	Turns    []engine.DialogueTurn       `json:"turns"`
	Outcome  *engine.ConversationOutcome `json:"outcome,omitempty"`
}

func (s *Server) handleListCalls(w http.ResponseWriter, r *http.Request) {
	calls := s.telephony.Calls()
	summaries := make([]CallSummary, 0, len(calls))
	for _, call := range calls {
		summaries = append(summaries, CallSummary{
			CallID:   call.ID(),
			Business: call.Business(),
			State:    call.State().String(),
			Turns:    call.Turns(),
			Outcome:  call.Outcome(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"calls": summaries})
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("location is required"))
		return
	}

	radius := discovery.DefaultRadius
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid radius %q", raw))
			return
		}
		radius = parsed
	}

	businesses, err := s.discovery.FindBusinesses(r.Context(), location, radius, r.URL.Query().Get("keyword"))
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"results": businesses})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn("request failed", "status", status, "error", err)
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
