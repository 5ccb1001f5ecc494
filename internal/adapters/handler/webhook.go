package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/webhook"
	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
)

const (
	CodeMalformedNotification = "MALFORMED_NOTIFICATION"
	CodeInvalidSignature      = "INVALID_SIGNATURE"
	CodeRetryLater            = "RETRY_LATER"
)

type notification struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID domain.ResourceID `json:"id"`
	} `json:"data"`
}

type WebhookAck struct {
	Received bool `json:"received"`
	Handled  bool `json:"handled"`
}

type WebhookHandler struct {
	verifier       SignatureVerifier
	dispatcher     WebhookDispatcher
	schema         *NotificationSchema
	maxBodyBytes   int64
	processTimeout time.Duration
	retryTransient bool
	logger         *slog.Logger
}

func NewWebhookHandler(
	verifier SignatureVerifier,
	dispatcher WebhookDispatcher,
	schema *NotificationSchema,
	cfg config.WebhookConfig,
	logger *slog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:       verifier,
		dispatcher:     dispatcher,
		schema:         schema,
		maxBodyBytes:   cfg.MaxBodyBytes,
		processTimeout: cfg.ProcessTimeout,
		retryTransient: cfg.RetryTransient,
		logger:         logger,
	}
}

func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+WebhookPath, h.HandleNotification)
	mux.HandleFunc("GET "+WebhookPath, h.HandleLiveness)
}

// HandleLiveness answers the gateway's reachability probe
// @Summary      Webhook liveness
// @Tags         webhooks
// @Produce      json
// @Success      200  {object}  APIResponse
// @Router       /api/webhooks/payments [get]
func (h *WebhookHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok", "endpoint": "payments-webhook"})
}

// HandleNotification verifies and reconciles a gateway notification
// @Summary      Receive a payment notification
// @Description  Verifies the x-signature header, fetches the named resource from the gateway and reconciles the local order.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        x-signature   header    string  false  "ts=<unix>,v1=<hex hmac>"
// @Param        x-request-id  header    string  false  "Delivery id"
// @Param        type          query     string  false  "Event type when the body omits it"
// @Param        data.id       query     string  false  "Resource id when the body omits it"
// @Success      200           {object}  APIResponse  "Acknowledged"
// @Failure      400           {object}  APIResponse  "Missing type or data.id"
// @Failure      401           {object}  APIResponse  "Signature check failed"
// @Failure      503           {object}  APIResponse  "Transient failure, redeliver"
// @Router       /api/webhooks/payments [post]
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	eventType, dataID, err := h.parse(w, r)
	logger := h.logger.With("type", eventType, "data_id", dataID, "request_id", r.Header.Get(webhook.RequestIDHeader))
	if err != nil {
		logger.Warn("malformed webhook", "error", err)
		respondWithJSON(w, http.StatusBadRequest, &APIError{Code: CodeMalformedNotification, Message: err.Error()})
		return
	}

	result := h.verifier.Verify(r.Header, dataID)
	if !result.Accepted() {
		logger.Warn("webhook signature rejected", "reason", result.Reason)
		respondWithJSON(w, http.StatusUnauthorized, &APIError{Code: CodeInvalidSignature, Message: result.Reason})
		return
	}

	// Processing is bounded independently of the server timeouts.
	ctx, cancel := context.WithTimeout(r.Context(), h.processTimeout)
	defer cancel()

	handled, err := h.dispatcher.Dispatch(ctx, eventType, dataID)
	if err != nil {
		if domain.IsTransient(err) && h.retryTransient {
			logger.Error("webhook processing failed, asking for redelivery", "signature", result.Outcome.String(), "error", err)
			w.Header().Set("Retry-After", "30")
			respondWithJSON(w, http.StatusServiceUnavailable, &APIError{Code: CodeRetryLater, Message: "temporary failure, redeliver"})
			return
		}
		logger.Error("webhook processing failed, acknowledged", "signature", result.Outcome.String(), "error", err)
		respondWithJSON(w, http.StatusOK, WebhookAck{Received: true})
		return
	}

	logger.Info("webhook processed", "signature", result.Outcome.String(), "handled", handled)
	respondWithJSON(w, http.StatusOK, WebhookAck{Received: true, Handled: handled})
}

var errMissingFields = errors.New("type and data.id are required")

// parse extracts the event type and resource id from the body, falling back
// to query parameters. Body values win.
func (h *WebhookHandler) parse(w http.ResponseWriter, r *http.Request) (string, string, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", "", errors.New("body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes")
		}
		return "", "", err
	}

	var n notification
	if len(bytes.TrimSpace(body)) > 0 {
		if err := h.schema.Validate(body); err != nil {
			return "", "", err
		}
		if err := json.Unmarshal(body, &n); err != nil {
			return "", "", err
		}
	}

	q := r.URL.Query()
	eventType := firstNonEmpty(n.Type, n.Topic, q.Get("type"), q.Get("topic"))
	dataID := firstNonEmpty(string(n.Data.ID), q.Get("data.id"), q.Get("id"))
	eventType = strings.TrimSpace(eventType)
	dataID = strings.TrimSpace(dataID)

	if eventType == "" || dataID == "" {
		return eventType, dataID, errMissingFields
	}
	return eventType, dataID, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
