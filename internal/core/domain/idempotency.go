package domain

import (
	"fmt"
	"time"
)

const (
	OpCreateOrder   = "create_order"
	OpCreatePayment = "create_payment"
)

// IdempotencyKey builds "operation:id:timestamp". The timestamp is fixed per
// logical attempt so HTTP retries of the same attempt share the key.
func IdempotencyKey(operation, id string, attempt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", operation, id, attempt.UnixMilli())
}

// AttemptKey builds "operation:id:n" for the n-th logical attempt on id.
func AttemptKey(operation, id string, attempt int) string {
	return fmt.Sprintf("%s:%s:%d", operation, id, attempt)
}
