// Package server exposes the Data API over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/tomyedwab/dataapi/dataapi/apierror"
	"github.com/tomyedwab/dataapi/dataapi/executor"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

// DefaultMaxBodyBytes is used when Config.MaxBodyBytes is not set.
const DefaultMaxBodyBytes = 4 << 20

// Config holds the listener settings and the ARNs every request must carry.
type Config struct {
	// Addr is the host:port to listen on.
	Addr string
	// ResourceARN and SecretARN must match the ARNs in every request.
	ResourceARN string
	SecretARN   string
	// MaxBodyBytes limits the size of request bodies.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Server serves the Data API endpoints.
type Server struct {
	cfg        Config
	executor   *executor.Executor
	logger     *slog.Logger
	handler    http.Handler
	httpServer *http.Server
}

// New builds a Server that serves the Data API endpoints through exec.
// Unset Logger and MaxBodyBytes fall back to slog.Default and
// DefaultMaxBodyBytes.
func New(cfg Config, exec *executor.Executor) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{
		cfg:      cfg,
		executor: exec,
		logger:   cfg.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /BeginTransaction", s.handleBeginTransaction)
	mux.HandleFunc("POST /CommitTransaction", s.handleCommitTransaction)
	mux.HandleFunc("POST /RollbackTransaction", s.handleRollbackTransaction)
	mux.HandleFunc("POST /Execute", s.handleExecute)
	mux.HandleFunc("POST /BatchExecute", s.handleBatchExecute)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("/", s.handleUnknownRoute)

	s.handler = Chain(
		mux.ServeHTTP,
		LimitBody(cfg.MaxBodyBytes),
		LogRequests(s.logger),
		RequestID,
	)
	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.handler,
	}
	return s
}

// Handler returns the HTTP handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Data API listening", "addr", s.cfg.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("Data API listening", "addr", l.Addr().String())
	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type credentialed interface {
	ARNs() (resource, secret string)
}

// decodeRequest reads the JSON body into req and checks its ARNs.
func (s *Server) decodeRequest(r *http.Request, req credentialed) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierror.ErrPayloadTooLarge
		}
		return apierror.InvalidPayload(err)
	}
	resource, secret := req.ARNs()
	if resource != s.cfg.ResourceARN {
		return apierror.ResourceARNMismatch(s.cfg.ResourceARN)
	}
	if secret != s.cfg.SecretARN {
		return apierror.ErrInvalidSecretARN
	}
	return nil
}

func (s *Server) handleBeginTransaction(w http.ResponseWriter, r *http.Request) {
	var req types.BeginTransactionRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.executor.BeginTransaction(r.Context(), &req)
	s.handleAPIResponse(w, r, resp, err)
}

func (s *Server) handleCommitTransaction(w http.ResponseWriter, r *http.Request) {
	var req types.EndTransactionRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.executor.CommitTransaction(r.Context(), &req)
	s.handleAPIResponse(w, r, resp, err)
}

func (s *Server) handleRollbackTransaction(w http.ResponseWriter, r *http.Request) {
	var req types.EndTransactionRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.executor.RollbackTransaction(r.Context(), &req)
	s.handleAPIResponse(w, r, resp, err)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req types.ExecuteStatementRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.executor.ExecuteStatement(r.Context(), &req)
	s.handleAPIResponse(w, r, resp, err)
}

func (s *Server) handleBatchExecute(w http.ResponseWriter, r *http.Request) {
	var req types.BatchExecuteStatementRequest
	if err := s.decodeRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.executor.BatchExecuteStatement(r.Context(), &req)
	s.handleAPIResponse(w, r, resp, err)
}

// handleIndex answers liveness checks.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.handleAPIResponse(w, r, types.StringValue("ok"), nil)
}

func (s *Server) handleUnknownRoute(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		http.NotFound(w, r)
		return
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
