package ports

import (
	"context"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
)

// Notifier hands a payment notification to the email collaborator.
type Notifier interface {
	Send(ctx context.Context, recipient domain.Recipient, to string, data domain.PaymentNotificationData) error
}
