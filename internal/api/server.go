package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/carecircle/internal/auth"
	"github.com/Kerhoff/carecircle/internal/fanout"
	"github.com/Kerhoff/carecircle/internal/service"
)

// LiveHub registers live stream subscribers. *fanout.Hub satisfies it.
type LiveHub interface {
	Subscribe(circleID int64, sub fanout.Subscriber) string
	Unsubscribe(circleID int64, id string) bool
}

// Server provides the HTTP API.
type Server struct {
	svc      *service.Service
	hub      LiveHub
	jwt      *auth.JWT
	logger   *logrus.Logger
	validate *validator.Validate
	router   chi.Router

	corsOrigins     []string
	streamKeepAlive time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, hub LiveHub, jwtSvc *auth.JWT, logger *logrus.Logger, corsOrigins []string) *Server {
	s := &Server{
		svc:             svc,
		hub:             hub,
		jwt:             jwtSvc,
		logger:          logger,
		validate:        newValidator(),
		router:          chi.NewRouter(),
		corsOrigins:     corsOrigins,
		streamKeepAlive: 25 * time.Second,
		done:            make(chan struct{}),
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown ends every open live stream. Register it with
// http.Server.RegisterOnShutdown so graceful shutdown does not wait on them.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() { close(s.done) })
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)

	if len(s.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(s.jwt))

		r.Get("/circles/{circleID}/stream", s.handleStream)
		r.Get("/circles/{circleID}/tasks", s.handleListTasks)

		r.Post("/tasks/{id}/ack", s.handleAckTask)
		r.Post("/tasks/{id}/complete", s.handleCompleteTask)

		r.Post("/telemetry/location", s.handleLocation)
		r.Post("/telemetry/heartbeat", s.handleHeartbeat)
		r.Post("/telemetry/vitals", s.handleVital)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": chimw.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads the request body into dst and validates it. It writes the
// error response itself; the caller should return immediately when ok is
// false. An empty body is accepted when optional is true.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) (ok bool) {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
			return false
		}
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			s.respondJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": fields})
			return false
		}
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// respondServiceError maps service errors onto status codes.
func (s *Server) respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, service.ErrUserNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		s.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrAlreadyCompleted), errors.Is(err, service.ErrNoCircle):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidTelemetry):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.WithError(err).Errorf("failed to %s", action)
		s.respondError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// pathID extracts a numeric path parameter
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s in path", name)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func currentUser(r *http.Request) int64 {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}
