// Package mailer hands payment notifications to the email collaborator.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/DanielPopoola/storefront-checkout/internal/config"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
)

var ErrMailerDisabled = errors.New("mailer not configured")

type sendRequest struct {
	Template string                         `json:"template"`
	To       string                         `json:"to"`
	Data     domain.PaymentNotificationData `json:"data"`
}

type HTTPNotifier struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPNotifier(cfg config.MailerConfig) ports.Notifier {
	return &HTTPNotifier{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Send posts one notification. The template is named after the recipient.
func (n *HTTPNotifier) Send(ctx context.Context, recipient domain.Recipient, to string, data domain.PaymentNotificationData) error {
	if n.baseURL == "" {
		return ErrMailerDisabled
	}

	body, err := json.Marshal(sendRequest{
		Template: "payment_approved_" + string(recipient),
		To:       to,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("error marshalling json: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	// Lets the mailer drop a repeated notification for the same payment.
	req.Header.Set("X-Idempotency-Key", fmt.Sprintf("notify:%s:%s", recipient, data.PaymentID))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mailer returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
