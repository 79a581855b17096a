// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

// Package adminrpc implements the admin control-plane RPC server: a JSON-RPC
// 2.0 endpoint that authenticates callers against a remote key set, authorizes
// them against a closed permission-scope model and dispatches to a fixed
// catalog of administrative tools and resources under a bounded time budget.
package adminrpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// defaultServerAddress is the default listen address.
	defaultServerAddress = "localhost:3000"
	// defaultServerPath is the default RPC endpoint path.
	defaultServerPath = "/rpc"
	// defaultRequestTimeout is the default per-request dispatch budget.
	defaultRequestTimeout = 30 * time.Second
	// maxRequestBodySize caps the request body read.
	maxRequestBodySize = 4 << 20
)

// Implementation identifies the server to clients and logs.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// serverConfig collects the option-settable knobs.
type serverConfig struct {
	addr    string
	path    string
	timeout time.Duration

	resolver      ActorResolver
	audit         AuditSink
	limiter       *rate.Limiter
	meterProvider metric.MeterProvider
	traceProvider trace.TracerProvider
}

// Server is the admin control-plane RPC server.
type Server struct {
	serverInfo   Implementation
	config       *serverConfig
	logger       Logger
	registry     *methodRegistry
	processor    *requestProcessor
	customServer *http.Server
}

// ServerOption configures the server at construction.
type ServerOption func(*Server)

// NewServer creates a server over the given backends. The catalog shape is
// fixed at construction; options wire authentication, auditing, telemetry and
// transport knobs.
func NewServer(name, version string, backends Backends, options ...ServerOption) *Server {
	s := &Server{
		serverInfo: Implementation{Name: name, Version: version},
		config: &serverConfig{
			addr:    defaultServerAddress,
			path:    defaultServerPath,
			timeout: defaultRequestTimeout,
		},
	}

	for _, option := range options {
		option(s)
	}

	if s.logger == nil {
		s.logger = GetDefaultLogger()
	}

	s.registry = newMethodRegistry(backends)
	s.processor = newRequestProcessor(
		s.registry,
		s.config.resolver,
		s.config.audit,
		newServerMetrics(s.config.meterProvider, s.config.traceProvider),
		s.logger,
		s.config.timeout,
	)
	return s
}

// WithServerAddress sets the listen address.
func WithServerAddress(addr string) ServerOption {
	return func(s *Server) {
		s.config.addr = addr
	}
}

// WithServerPath sets the RPC endpoint path.
func WithServerPath(path string) ServerOption {
	return func(s *Server) {
		s.config.path = path
	}
}

// WithRequestTimeout sets the per-request dispatch budget.
func WithRequestTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.config.timeout = timeout
		}
	}
}

// WithServerLogger sets the logger for the server and its subcomponents.
func WithServerLogger(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithAuditSink sets the sink receiving mutating-call audit records.
func WithAuditSink(sink AuditSink) ServerOption {
	return func(s *Server) {
		s.config.audit = sink
	}
}

// WithActorResolver sets the component turning Authorization header values
// into actor contexts.
func WithActorResolver(resolver ActorResolver) ServerOption {
	return func(s *Server) {
		s.config.resolver = resolver
	}
}

// WithTokenVerifier wires a token verifier through the default authenticator.
// Use WithActorResolver to replace the claim-to-actor mapping entirely.
func WithTokenVerifier(verifier TokenVerifier) ServerOption {
	return func(s *Server) {
		s.config.resolver = NewAuthenticator(verifier, s.logger)
	}
}

// WithRateLimiter sets a transport-level request limiter. Rejected requests
// receive HTTP 429 before any envelope processing.
func WithRateLimiter(limiter *rate.Limiter) ServerOption {
	return func(s *Server) {
		s.config.limiter = limiter
	}
}

// WithMeterProvider sets the provider for request metrics. Defaults to the
// otel global, which is a no-op unless configured.
func WithMeterProvider(mp metric.MeterProvider) ServerOption {
	return func(s *Server) {
		s.config.meterProvider = mp
	}
}

// WithTracerProvider sets the provider for per-request spans.
func WithTracerProvider(tp trace.TracerProvider) ServerOption {
	return func(s *Server) {
		s.config.traceProvider = tp
	}
}

// WithHTTPServer supplies a custom http.Server. Its Handler is populated at
// Start when unset.
func WithHTTPServer(srv *http.Server) ServerOption {
	return func(s *Server) {
		s.customServer = srv
	}
}

// ListTools returns the tool catalog in registration order. The returned
// descriptors are copies.
func (s *Server) ListTools() []Tool {
	return s.registry.listTools()
}

// ListResources returns the resource catalog in registration order.
func (s *Server) ListResources() []Resource {
	return s.registry.listResources()
}

// Handler returns the HTTP handler serving the RPC endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(s.config.path, http.HandlerFunc(s.serveRPC))
	return mux
}

// Start runs the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Infof("%s %s listening on %s%s",
		s.serverInfo.Name, s.serverInfo.Version, s.config.addr, s.config.path)
	if s.customServer != nil {
		if s.customServer.Handler == nil {
			s.customServer.Handler = s.Handler()
		}
		return s.customServer.ListenAndServe()
	}
	s.customServer = &http.Server{Addr: s.config.addr, Handler: s.Handler()}
	return s.customServer.ListenAndServe()
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.customServer == nil {
		return nil
	}
	return s.customServer.Shutdown(ctx)
}

// serveRPC handles one POSTed envelope. Protocol-level outcomes travel in the
// response body with HTTP 200; only the transport concerns (method, limiter)
// use HTTP status codes.
func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if s.config.limiter != nil && !s.config.limiter.Allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		s.writeResponse(w, newJSONRPCErrorResponse(nil, ErrCodeParse, "parse error: unreadable request body", nil))
		return
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		// The identifier may itself be unreadable; respond with a null id.
		s.writeResponse(w, newJSONRPCErrorResponse(nil, ErrCodeParse, "parse error: invalid JSON", nil))
		return
	}

	resp := s.processor.HandleRequest(r.Context(), &req, r.Header.Get("Authorization"))
	s.writeResponse(w, resp)
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Errorf("failed to write response: %v", err)
	}
}
