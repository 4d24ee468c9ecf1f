package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"phishguard/internal/constants"
	apperrors "phishguard/internal/errors"
	"phishguard/internal/metrics"
	"phishguard/internal/middleware"
	"phishguard/internal/models"
	"phishguard/internal/service"
	"phishguard/internal/tracing"
	"phishguard/internal/validation"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	maxRequestBodyBytes = 64 << 10
	healthCheckTimeout  = 2 * time.Second
	watchWriteTimeout   = 5 * time.Second
)

// pinger is satisfied by the database
type pinger interface {
	Ping(ctx context.Context) error
}

// brokerHealth is satisfied by the broker client
type brokerHealth interface {
	Healthy() bool
}

type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        models.ServerConfig
	apiKey     string
	processing service.SMSProcessingService
	db         pinger
	broker     brokerHealth
	metrics    *metrics.Registry
	server     *http.Server
}

func NewServer(cfg *models.Config, processing service.SMSProcessingService, db pinger, broker brokerHealth, logger *logrus.Logger, registry *metrics.Registry) *Server {
	if registry == nil {
		registry = metrics.GetRegistry()
	}
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg.Server,
		apiKey:     cfg.Security.APIKey,
		processing: processing,
		db:         db,
		broker:     broker,
		metrics:    registry,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger, s.metrics))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.APIKeyMiddleware(s.apiKey, s.logger))
	api.HandleFunc("/sms/incoming", s.handleIncomingSMS()).Methods(http.MethodPost)
	api.HandleFunc("/sms/{id}", s.handleGetMessage()).Methods(http.MethodGet)
	api.HandleFunc("/sms/{id}/watch", s.handleWatchMessage()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	port := s.cfg.Port
	if port <= 0 {
		port = constants.DefaultServerPort
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  secondsOr(s.cfg.ReadTimeoutSec, constants.DefaultServerReadTimeoutSec),
		WriteTimeout: secondsOr(s.cfg.WriteTimeoutSec, constants.DefaultServerWriteTimeoutSec),
		IdleTimeout:  secondsOr(s.cfg.IdleTimeoutSec, constants.DefaultServerIdleTimeoutSec),
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func secondsOr(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Broker   string `json:"broker"`
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		resp := healthResponse{Status: "ok", Database: "up", Broker: "up"}
		code := http.StatusOK

		if err := s.db.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("Health check: database unreachable")
			resp.Database = "down"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		if !s.broker.Healthy() {
			resp.Broker = "down"
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}

		s.writeJSON(w, code, resp)
	}
}

func (s *Server) handleIncomingSMS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := validation.ValidateHTTPRequestSize(r, maxRequestBodyBytes); err != nil {
			s.writeError(w, r, err)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

		var sms models.IncomingSMS
		if err := json.NewDecoder(r.Body).Decode(&sms); err != nil {
			s.writeError(w, r, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "malformed request body").
				WithUserMessage("Request body must be a JSON object"))
			return
		}

		if err := validation.ValidateIncomingSMS(sms); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.processing.ProcessSMS(r.Context(), sms)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusAccepted, result)
	}
}

func (s *Server) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.lookupMessage(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, record)
	}
}

// lookupMessage resolves the {id} route variable, mapping a missing record to NOT_FOUND
func (s *Server) lookupMessage(r *http.Request) (*models.MessageRecord, error) {
	id := mux.Vars(r)["id"]
	if err := validation.ValidateMessageID(id); err != nil {
		return nil, err
	}
	record, err := s.processing.GetMessage(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperrors.NewNotFoundError("message", id)
	}
	return record, nil
}

// watchEvent is pushed to websocket clients on every observed status change
type watchEvent struct {
	MessageID        string                  `json:"messageId"`
	Status           models.MessageStatus    `json:"status"`
	ProcessingStatus models.ProcessingStatus `json:"processingStatus"`
	Terminal         bool                    `json:"terminal"`
}

func newWatchEvent(record *models.MessageRecord) watchEvent {
	return watchEvent{
		MessageID:        record.ID,
		Status:           record.Status,
		ProcessingStatus: models.PublicStatus(record.Status),
		Terminal:         record.Status.IsTerminal(),
	}
}

func (s *Server) handleWatchMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := s.lookupMessage(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
		if err != nil {
			s.logger.WithError(err).Warn("Websocket upgrade failed")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		log := s.logger.WithField(service.LogFieldMessageID, record.ID)

		readErr := make(chan error, 1)
		go func() {
			for {
				if _, _, err := conn.Read(ctx); err != nil {
					readErr <- err
					return
				}
			}
		}()

		last := record.Status
		if err := s.pushEvent(ctx, conn, newWatchEvent(record)); err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
			return
		}
		if last.IsTerminal() {
			_ = conn.Close(websocket.StatusNormalClosure, "terminal")
			return
		}

		interval := time.Duration(s.cfg.WatchPollInterval) * time.Millisecond
		if interval <= 0 {
			interval = constants.DefaultWatchPollIntervalMs * time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			case <-readErr:
				_ = conn.Close(websocket.StatusNormalClosure, "closed")
				return
			case <-ticker.C:
				current, err := s.processing.GetMessage(ctx, record.ID)
				if err != nil {
					log.WithError(err).Warn("Watch poll failed")
					continue
				}
				if current == nil || current.Status == last {
					continue
				}
				last = current.Status
				if err := s.pushEvent(ctx, conn, newWatchEvent(current)); err != nil {
					_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
					return
				}
				if last.IsTerminal() {
					_ = conn.Close(websocket.StatusNormalClosure, "terminal")
					return
				}
			}
		}
	}
}

func (s *Server) pushEvent(ctx context.Context, conn *websocket.Conn, evt watchEvent) error {
	writeCtx, cancel := context.WithTimeout(ctx, watchWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, evt)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := tracing.GetRequestID(r.Context())
	code := apperrors.HTTPStatusCode(err)

	entry := apperrors.FromLogrus(s.logger).WithError(err).WithFields(logrus.Fields{
		service.LogFieldRequestID:  requestID,
		service.LogFieldURL:        r.URL.Path,
		service.LogFieldStatusCode: code,
	})
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Debug("Request rejected")
	}

	s.writeJSON(w, code, apperrors.ToHTTPResponse(err, requestID))
}
