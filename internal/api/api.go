// Package api is the HTTP boundary: routing, CORS, request decoding and
// the error envelope. Handlers delegate all business rules to the service
// layer and translate its errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/toonslate/toonslate-backend/internal/metrics"
	"github.com/toonslate/toonslate-backend/internal/service"
	"github.com/toonslate/toonslate-backend/internal/storage"
)

// Server holds the handler dependencies.
type Server struct {
	svc         *service.Service
	store       *storage.Local
	corsOrigins []string
	validate    *validator.Validate
	logger      *zap.Logger
}

// New builds the server.
func New(svc *service.Service, store *storage.Local, corsOrigins []string, logger *zap.Logger) *Server {
	return &Server{
		svc:         svc,
		store:       store,
		corsOrigins: corsOrigins,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Router assembles the full route table.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         600,
	}))

	r.Post("/upload", s.handleCreateUpload)
	r.Get("/upload/{uploadID}", s.handleGetUpload)
	r.Post("/translate", s.handleCreateTranslate)
	r.Get("/translate/{translateID}", s.handleGetTranslate)
	r.Post("/batch", s.handleCreateBatch)
	r.Get("/batch/{batchID}", s.handleGetBatch)
	r.Post("/erase", s.handleErase)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	// Serves both originals and results under one prefix.
	fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(s.store.BaseDir())))
	r.Get("/static/*", fileServer.ServeHTTP)

	return r
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).Inc()
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}

func (s *Server) writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, errorEnvelope{Detail: errorDetail{Code: code, Message: message}})
}

// writeError maps service and validation errors onto the envelope.
// Anything unrecognized is a 500 without internal detail.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var serr *service.Error
	if errors.As(err, &serr) {
		s.writeErrorCode(w, serr.HTTPStatus(), serr.Code, serr.Message)
		return
	}

	var verr *storage.ValidationError
	if errors.As(err, &verr) {
		s.writeErrorCode(w, http.StatusBadRequest, "INVALID_FILE", verr.Message)
		return
	}

	s.logger.Error("request failed", zap.Error(err))
	s.writeErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "내부 오류가 발생했습니다")
}

// decodeJSON parses and validates a request body. false means the error
// response is already written.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeErrorCode(w, http.StatusUnprocessableEntity, "INVALID_REQUEST", "요청 본문을 해석할 수 없습니다")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.writeErrorCode(w, http.StatusUnprocessableEntity, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}
