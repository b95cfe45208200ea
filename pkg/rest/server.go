// Copyright 2026 © The Seldon Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package rest is the HTTP binding of the prediction API.
package rest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/adamjm/seldon-core/pkg/codec"
	"github.com/adamjm/seldon-core/pkg/component"
	"github.com/adamjm/seldon-core/pkg/contract"
	"github.com/adamjm/seldon-core/pkg/dispatch"
	"github.com/adamjm/seldon-core/pkg/errors"
	"github.com/adamjm/seldon-core/pkg/prediction"
	"github.com/adamjm/seldon-core/pkg/resilience"
)

// Routes served by the handler.
const (
	PathPredict      = "/predict"
	PathPredictions  = "/api/v1.0/predictions"
	PathFeedback     = "/send-feedback"
	PathFeedbackV1   = "/api/v1.0/feedback"
	PathContract     = "/seldon.json"
	PathHealthPing   = "/health/ping"
	PathHealthStatus = "/health/status"
	PathMetadata     = "/metadata"
)

const (
	defaultMaxMemory = 32 << 20
	jsonParam        = "json"
	contentTypeJSON  = "application/json"
	contentTypeMulti = "multipart/form-data"
)

// Server exposes a dispatcher over HTTP.
type Server struct {
	dispatcher *dispatch.Dispatcher
	health     *component.HealthRegistry
	contract   contract.Document
	timeout    time.Duration
	maxMemory  int64
	mux        *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithTimeout bounds every dispatch. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// WithHealth serves /health/status from r.
func WithHealth(r *component.HealthRegistry) Option {
	return func(s *Server) {
		s.health = r
	}
}

// WithContract sets the document served at /seldon.json.
func WithContract(doc contract.Document) Option {
	return func(s *Server) {
		s.contract = doc
	}
}

// WithMaxMultipartMemory limits the multipart bytes kept in memory.
func WithMaxMultipartMemory(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxMemory = n
		}
	}
}

// New creates the HTTP binding for d.
func New(d *dispatch.Dispatcher, opts ...Option) *Server {
	s := &Server{dispatcher: d, maxMemory: defaultMaxMemory}
	for _, opt := range opts {
		opt(s)
	}
	if s.contract == nil {
		s.contract = contract.Default()
	}
	if s.health == nil {
		s.health = component.NewHealthRegistry()
		s.health.Register(d.Name(), d.Component())
	}

	mux := http.NewServeMux()
	mux.HandleFunc(PathPredict, s.methods(s.handlePredict, http.MethodGet, http.MethodPost))
	mux.HandleFunc(PathPredictions, s.methods(s.handlePredict, http.MethodPost))
	mux.HandleFunc(PathFeedback, s.methods(s.handleFeedback, http.MethodGet, http.MethodPost))
	mux.HandleFunc(PathFeedbackV1, s.methods(s.handleFeedback, http.MethodPost))
	mux.HandleFunc(PathContract, s.methods(s.handleContract, http.MethodGet))
	mux.HandleFunc(PathHealthPing, s.methods(s.handlePing, http.MethodGet))
	mux.HandleFunc(PathHealthStatus, s.methods(s.handleHealth, http.MethodGet))
	mux.HandleFunc(PathMetadata, s.methods(s.handleMetadata, http.MethodGet))
	s.mux = mux
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r.WithContext(ctx))
	slog.Default().DebugContext(ctx, "rest.request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", rec.status),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// Handle mounts an additional handler, such as the JSON-RPC or MCP
// bindings, on the same mux.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, h)
}

func (s *Server) methods(h http.HandlerFunc, allowed ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, m := range allowed {
			if r.Method == m {
				h(w, r)
				return
			}
		}
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		ge := errors.Newf(errors.CodeInvalidInput, "method %s not allowed", r.Method)
		ge.StatusCode = http.StatusMethodNotAllowed
		writeError(w, ge)
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	req, err := s.readMessage(r)
	if err != nil {
		writeError(w, err)
		return
	}
	resp, err := resilience.Timeout(r.Context(), s.timeout, func(ctx context.Context) (*prediction.JSONMessage, error) {
		return s.dispatcher.PredictREST(ctx, req)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readJSON(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if raw == nil {
		writeError(w, errors.New(errors.CodeInvalidInput, "empty json parameter in data", nil))
		return
	}
	fb := &prediction.JSONFeedback{}
	if err := json.Unmarshal(raw, fb); err != nil {
		writeError(w, errors.New(errors.CodeMalformedPayload, "invalid feedback", err))
		return
	}
	resp, err := resilience.Timeout(r.Context(), s.timeout, func(ctx context.Context) (*prediction.JSONMessage, error) {
		return s.dispatcher.FeedbackREST(ctx, fb)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContract(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.contract)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "pong")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, overall := s.health.CheckAll(r.Context())
	status := http.StatusOK
	if overall == component.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"status": overall, "components": results})
}

func (s *Server) handleMetadata(w http.ResponseWriter, _ *http.Request) {
	md := map[string]any{"name": s.dispatcher.Name()}
	if p, ok := s.dispatcher.Component().(component.MetadataProvider); ok {
		for k, v := range p.Metadata() {
			md[k] = v
		}
	}
	writeJSON(w, http.StatusOK, md)
}

// readMessage accepts, in order, the json parameter, a multipart form and
// a JSON body.
func (s *Server) readMessage(r *http.Request) (*prediction.JSONMessage, error) {
	mediaType := requestMediaType(r)
	if mediaType == contentTypeMulti {
		if err := r.ParseMultipartForm(s.maxMemory); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid multipart form", err)
		}
		if v := r.Form.Get(jsonParam); v != "" {
			return decodeMessage([]byte(v))
		}
		return codec.FromMultipart(r.MultipartForm)
	}
	raw, err := s.readJSON(r)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New(errors.CodeInvalidInput, "empty json parameter in data", nil)
	}
	return decodeMessage(raw)
}

// readJSON returns the json parameter, or the body of a JSON request, or
// nil when neither is present.
func (s *Server) readJSON(r *http.Request) ([]byte, error) {
	mediaType := requestMediaType(r)
	switch mediaType {
	case contentTypeMulti:
		if err := r.ParseMultipartForm(s.maxMemory); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid multipart form", err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, errors.New(errors.CodeMalformedPayload, "invalid form", err)
		}
	}
	if v := r.Form.Get(jsonParam); v != "" {
		return []byte(v), nil
	}
	if mediaType != contentTypeJSON || r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.New(errors.CodeMalformedPayload, "cannot read body", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}
	return body, nil
}

func decodeMessage(raw []byte) (*prediction.JSONMessage, error) {
	m := &prediction.JSONMessage{}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, errors.New(errors.CodeMalformedPayload, "invalid json message", err)
	}
	return m, nil
}

func requestMediaType(r *http.Request) string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mt
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		writeError(w, errors.New(errors.CodeInternal, "cannot encode response", err))
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// writeError writes err as a FAILURE status message.
func writeError(w http.ResponseWriter, err error) {
	ge := errors.AsGatewayError(err)
	status := ge.StatusCode
	body := prediction.JSONMessage{Status: &prediction.JSONStatus{
		Code:   int32(status),
		Info:   info(ge),
		Reason: string(ge.Code),
		Status: "FAILURE",
	}}
	payload, _ := json.Marshal(body)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func info(ge *errors.GatewayError) string {
	if ge.Err != nil {
		return ge.Message + ": " + ge.Err.Error()
	}
	return ge.Message
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
