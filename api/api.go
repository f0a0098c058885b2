package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"firewatch/config"
	"firewatch/tools"
)

// maxRequestBytes bounds one tool invocation body.
const maxRequestBytes = 1 * 1024 * 1024

// Server exposes the tool surface over HTTP.
type Server struct {
	service *tools.Service
	log     *zap.Logger
	http    *http.Server
}

// NewServer builds the HTTP server and its routes.
func NewServer(service *tools.Service, cfg *config.Config, log *zap.Logger) *Server {
	s := &Server{
		service: service,
		log:     log,
	}

	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/v1/tools", s.handleListTools).Methods(http.MethodGet)
	r.HandleFunc("/v1/tools/{name}", s.handleInvokeTool).Methods(http.MethodPost)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}
	return s
}

// ListenAndServe blocks serving requests until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	s.log.Info("api server listening", zap.String("addr", s.http.Addr))
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the routes for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": tools.ToolNames()})
}

func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeToolError(w, &tools.ToolError{
			IsError: true,
			Message: "failed to read request body",
			Type:    tools.TypeValidation,
		})
		return
	}

	result, err := s.service.Dispatch(r.Context(), name, body)
	if err != nil {
		toolErr, ok := err.(*tools.ToolError)
		if !ok {
			toolErr = tools.AsToolError(err)
		}
		writeToolError(w, toolErr)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// statusFor maps a tool error type to an HTTP status. Caller mistakes are
// 4xx, upstream trouble is 502, everything else is 500.
func statusFor(t *tools.ToolError) int {
	switch t.Type {
	case tools.TypeValidation, tools.TypeSyntax, tools.TypeCursor, tools.TypeCorrelation:
		return http.StatusBadRequest
	case tools.TypeUnknownTool:
		return http.StatusNotFound
	case tools.TypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeToolError(w http.ResponseWriter, toolErr *tools.ToolError) {
	writeJSON(w, statusFor(toolErr), toolErr)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// statusRecorder captures the response code for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.Info("request handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Duration("elapsed", time.Since(start)))
	})
}
