package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fracmarket/native/common"
	"fracmarket/native/marketplace"
	"fracmarket/observability"
)

// Server exposes the marketplace engine over HTTP/JSON.
type Server struct {
	engine  *marketplace.Engine
	logger  *slog.Logger
	metrics *observability.MarketplaceMetrics
}

// NewServer constructs an RPC server bound to the supplied engine.
func NewServer(engine *marketplace.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger, metrics: observability.Marketplace()}
}

// Router assembles the HTTP routes served by the marketplace daemon.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/v1/marketplace", func(r chi.Router) {
		r.Get("/offers/{id}", s.handleGetOffer)
		r.Post("/offers", s.handleList)
		r.Post("/offers/{id}/buy", s.handleBuy)
		r.Post("/offers/{id}/cancel", s.handleCancel)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("rpc request",
			slog.String("requestId", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, marketplace.ErrInvalidOfferID),
		errors.Is(err, marketplace.ErrInvalidTokenID),
		errors.Is(err, marketplace.ErrInvalidUnitPrice),
		errors.Is(err, marketplace.ErrInvalidCurrency),
		errors.Is(err, marketplace.ErrInvalidSellingAmount),
		errors.Is(err, marketplace.ErrInvalidValue),
		errors.Is(err, marketplace.ErrNotDivisible):
		return http.StatusBadRequest
	case errors.Is(err, marketplace.ErrInvalidBuying),
		errors.Is(err, marketplace.ErrInvalidCancelling),
		errors.Is(err, marketplace.ErrNotEnoughTokensToSell),
		errors.Is(err, marketplace.ErrBadAnchor):
		return http.StatusConflict
	case errors.Is(err, marketplace.ErrInsufficientValue):
		return http.StatusPaymentRequired
	case errors.Is(err, marketplace.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, common.ErrModulePaused), errors.Is(err, common.ErrReentrantCall):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, method string, err error) {
	s.metrics.Failures.WithLabelValues(method).Inc()
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}
