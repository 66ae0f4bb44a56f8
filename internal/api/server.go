// Package api exposes the trading service over HTTP: backtests, live
// strategy management, usage limits and the websocket signal feed.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/rxtech-lab/argo-signal/internal/logger"
	"github.com/rxtech-lab/argo-signal/internal/notifier"
	"github.com/rxtech-lab/argo-signal/internal/trading"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
	"github.com/rxtech-lab/argo-signal/pkg/marketdata"
)

// userHeader carries the caller's identity. A gateway in front of this
// service is expected to authenticate and set it.
const userHeader = "X-User-Id"

// Server is the HTTP layer over the trading service.
type Server struct {
	service *trading.Service
	hub     *notifier.WebSocketHub
	logger  *logger.Logger
	router  *mux.Router
}

func NewServer(service *trading.Service, hub *notifier.WebSocketHub, l *logger.Logger) *Server {
	s := &Server{
		service: service,
		hub:     hub,
		logger:  l,
		router:  mux.NewRouter(),
	}

	s.routes()

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the API until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("api server listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requireUser)

	api.HandleFunc("/backtest", s.handleRunBacktest).Methods(http.MethodPost)
	api.HandleFunc("/backtest/list", s.handleListBacktests).Methods(http.MethodGet)
	api.HandleFunc("/backtest/greatest-return", s.handleGreatestReturn).Methods(http.MethodGet)
	api.HandleFunc("/backtest/{id}", s.handleGetBacktest).Methods(http.MethodGet)

	api.HandleFunc("/live", s.handleStartLive).Methods(http.MethodPost)
	api.HandleFunc("/live", s.handleListLive).Methods(http.MethodGet)
	api.HandleFunc("/live/{id}", s.handleGetLive).Methods(http.MethodGet)
	api.HandleFunc("/live/{id}", s.handleStopLive).Methods(http.MethodDelete)
	api.HandleFunc("/live/{id}/pause", s.handlePauseLive).Methods(http.MethodPost)
	api.HandleFunc("/live/{id}/resume", s.handleResumeLive).Methods(http.MethodPost)

	api.HandleFunc("/limits", s.handleLimits).Methods(http.MethodGet)
	api.HandleFunc("/limits/reset", s.handleResetLimits).Methods(http.MethodPost)
	api.HandleFunc("/providers", s.handleProviders).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
}

type contextKey string

const userIDKey contextKey = "userID"

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		if userID == "" {
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error: "missing " + userHeader + " header",
				Code:  int(errors.ErrCodeInvalidParameter),
			})

			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userIDKey).(string)

	return id
}

type errorResponse struct {
	Error      string `json:"error"`
	Code       int    `json:"code"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	var req trading.BacktestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	record, err := s.service.RunBacktest(r.Context(), userID(r), req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListBacktests(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.ListBacktests(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGreatestReturn(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GreatestReturn(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	record, err := s.service.GetBacktest(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

type startLiveRequest struct {
	BacktestID string `json:"backtest_id"`
}

func (s *Server) handleStartLive(w http.ResponseWriter, r *http.Request) {
	var req startLiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidParameter, "invalid request body", err))

		return
	}

	if req.BacktestID == "" {
		s.writeError(w, errors.New(errors.ErrCodeMissingParameter, "backtest_id is required"))

		return
	}

	ls, err := s.service.StartLive(r.Context(), userID(r), req.BacktestID)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusCreated, ls)
}

func (s *Server) handleListLive(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.service.ListLive(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleGetLive(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.GetLiveStatus(r.Context(), userID(r), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStopLive(w http.ResponseWriter, r *http.Request) {
	if err := s.service.StopLive(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handlePauseLive(w http.ResponseWriter, r *http.Request) {
	if err := s.service.PauseLive(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleResumeLive(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ResumeLive(r.Context(), userID(r), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	usage, err := s.service.Usage(r.Context(), userID(r))
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, usage)
}

func (s *Server) handleResetLimits(w http.ResponseWriter, r *http.Request) {
	s.service.ResetLimits(userID(r))

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleProviders(w http.ResponseWriter, _ *http.Request) {
	infos := make([]marketdata.ProviderInfo, 0)

	for _, name := range marketdata.SupportedProviders() {
		info, err := marketdata.GetProviderInfo(name)
		if err != nil {
			continue
		}

		infos = append(infos, info)
	}

	s.writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.hub.HandleConnection(w, r, userID(r))
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var rateErr *errors.RateLimitError
	if errors.As(err, &rateErr) {
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.RetryAfter))
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:      rateErr.Message,
			Code:       int(errors.ErrCodeRateLimited),
			RetryAfter: rateErr.RetryAfter,
		})

		return
	}

	s.writeJSON(w, errors.HTTPStatus(err), errorResponse{
		Error: err.Error(),
		Code:  int(errors.GetCode(err)),
	})
}
