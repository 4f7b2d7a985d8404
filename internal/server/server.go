package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/addressbridge/internal/telemetry"
	"github.com/tournevent/addressbridge/pkg/bridge"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// EventHeader optionally names the webhook event type.
const EventHeader = "X-Webhook-Event"

// maxWebhookBytes bounds the webhook body size.
const maxWebhookBytes = 1 << 20

// Server receives Bridge webhook deliveries.
type Server struct {
	port          int
	webhookSecret string
	client        *bridge.Client
	logger        *otelzap.Logger
	metrics       *telemetry.Metrics
	handler       http.Handler
}

// Config holds server configuration.
type Config struct {
	Port          int
	WebhookSecret string
}

// New creates a new server instance.
func New(cfg Config, client *bridge.Client, logger *otelzap.Logger, metrics *telemetry.Metrics) *Server {
	s := &Server{
		port:          cfg.Port,
		webhookSecret: cfg.WebhookSecret,
		client:        client,
		logger:        logger,
		metrics:       metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhook", s.handleWebhook)
	s.handler = r

	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting webhook receiver", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// webhookEvent is the part of a delivery the receiver inspects.
type webhookEvent struct {
	Event     string          `json:"event"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

type webhookResponse struct {
	Received   bool   `json:"received"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(webhookResponse{Error: "Method not allowed"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()

	// Signature covers the raw body bytes.
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		s.metrics.RecordWebhook("", telemetry.WebhookInvalidPayload)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			json.NewEncoder(w).Encode(webhookResponse{Error: "Payload too large"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(webhookResponse{Error: "Failed to read body"})
		return
	}

	// Nothing caller-supplied reaches a metric label before this point.
	signature := r.Header.Get(bridge.SignatureHeader)
	if !s.client.VerifyWebhookSignature(signature, payload, s.webhookSecret) {
		s.metrics.RecordWebhook("", telemetry.WebhookInvalidSignature)
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(webhookResponse{Error: "Invalid signature"})
		return
	}

	event := r.Header.Get(EventHeader)

	var body webhookEvent
	if err := json.Unmarshal(payload, &body); err != nil {
		s.metrics.RecordWebhook(event, telemetry.WebhookInvalidPayload)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(webhookResponse{Error: "Invalid JSON: " + err.Error()})
		return
	}
	if event == "" {
		event = body.Event
	}
	if event == "" {
		event = body.EventType
	}

	deliveryID := uuid.NewString()
	s.logger.Ctx(ctx).Info("Webhook received",
		zap.String("event", event),
		zap.String("delivery_id", deliveryID),
		zap.String("request_id", middleware.GetReqID(ctx)),
		zap.Int("payload_bytes", len(payload)),
	)
	s.metrics.RecordWebhook(event, telemetry.WebhookAccepted)

	json.NewEncoder(w).Encode(webhookResponse{Received: true, DeliveryID: deliveryID})
}
