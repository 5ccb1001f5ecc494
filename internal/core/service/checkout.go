package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/gateway"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/DanielPopoola/storefront-checkout/internal/core/ports"
	"github.com/shopspring/decimal"
)

// CheckoutService runs the two-phase order and payment protocol.
type CheckoutService struct {
	repo            ports.OrderRepository
	gateway         ports.GatewayPort
	reconciler      *Reconciler
	notifications   *NotificationTrigger
	prices          *PriceList
	converter       *Converter
	notificationURL string
	logger          *slog.Logger
	now             func() time.Time
}

func NewCheckoutService(
	repo ports.OrderRepository,
	gw ports.GatewayPort,
	reconciler *Reconciler,
	notifications *NotificationTrigger,
	prices *PriceList,
	converter *Converter,
	notificationURL string,
	logger *slog.Logger,
) *CheckoutService {
	return &CheckoutService{
		repo:            repo,
		gateway:         gw,
		reconciler:      reconciler,
		notifications:   notifications,
		prices:          prices,
		converter:       converter,
		notificationURL: notificationURL,
		logger:          logger,
		now:             time.Now,
	}
}

// PlaceOrderInput is a cart as submitted by the storefront.
type PlaceOrderInput struct {
	ExternalReference string
	Lines             []domain.CartLine
	Payer             domain.Payer
	Currency          string
	Country           string
}

// OrderResult is the outcome of phase 1.
type OrderResult struct {
	Order          *domain.Order
	GatewayOrderID string
	Reused         bool
}

// PlaceOrder prices the cart in USD, converts it to the local currency and
// runs phase 1.
func (s *CheckoutService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*OrderResult, error) {
	items, totalUSD, err := s.prices.Quote(ctx, in.Lines)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, domain.NewValidationFailure(err)
		}
		return nil, domain.NewTransientFailure("", err)
	}

	currency := ResolveCurrency(in.Currency, in.Country)
	total := s.converter.ConvertUSDToLocal(ctx, totalUSD, currency, in.Country)

	return s.CreateOrder(ctx, items, in.Payer, total, currency, in.ExternalReference)
}

// CreateOrder is phase 1. All local checks run before the gateway is called.
// Repeating the call with the same external reference reuses the stored
// order and its idempotency key.
func (s *CheckoutService) CreateOrder(ctx context.Context, lines []domain.LineItem, payer domain.Payer, total decimal.Decimal, currency, externalReference string) (*OrderResult, error) {
	currency = strings.ToUpper(currency)
	if externalReference == "" {
		return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "external_reference", Reason: "is required"})
	}
	if len(lines) == 0 {
		return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "lines", Reason: "at least one line is required"})
	}
	if err := domain.CheckMinimumCharge(total, currency); err != nil {
		return nil, domain.NewValidationFailure(err)
	}
	if err := domain.ValidatePayer(payer); err != nil {
		return nil, domain.NewValidationFailure(err)
	}

	items, err := domain.BuildLineItems(lines, total, currency)
	if err != nil {
		return nil, domain.NewValidationFailure(err)
	}

	pending, err := domain.NewPendingOrder(externalReference, currency, domain.Round(total, currency), payer, items)
	if err != nil {
		return nil, domain.NewValidationFailure(err)
	}

	order, inserted, err := s.repo.InsertPendingOrder(ctx, pending)
	if err != nil {
		return nil, domain.NewTransientFailure("", fmt.Errorf("store pending order: %w", err))
	}
	if !inserted && order.GatewayOrderID != nil {
		s.logger.Info("phase 1 reused existing gateway order",
			"external_reference", externalReference,
			"gateway_order_id", *order.GatewayOrderID,
		)
		return &OrderResult{Order: order, GatewayOrderID: *order.GatewayOrderID, Reused: true}, nil
	}

	key := domain.IdempotencyKey(domain.OpCreateOrder, externalReference, order.CreatedAt)
	resp, err := s.gateway.CreateOrder(ctx, domain.CreateOrderRequest{
		Type:              "online",
		ExternalReference: externalReference,
		TotalAmount:       order.TotalAmount,
		Currency:          order.Currency,
		Payer:             order.Payer,
		Items:             order.Items,
	}, key)
	if err != nil {
		s.logger.Warn("gateway create order failed", "external_reference", externalReference, "idempotency_key", key, "error", err)
		return nil, translateGatewayError(key, err)
	}

	attached, err := s.attachGatewayOrder(ctx, externalReference, resp.ID)
	if err != nil {
		return nil, domain.NewTransientFailure(key, fmt.Errorf("attach gateway order: %w", err))
	}

	s.logger.Info("phase 1 order created",
		"order_id", attached.ID,
		"external_reference", externalReference,
		"gateway_order_id", resp.ID,
		"total", attached.TotalAmount.String(),
		"currency", attached.Currency,
	)
	return &OrderResult{Order: attached, GatewayOrderID: *attached.GatewayOrderID, Reused: !inserted}, nil
}

func (s *CheckoutService) attachGatewayOrder(ctx context.Context, externalReference, gatewayOrderID string) (*domain.Order, error) {
	var order *domain.Order
	err := s.repo.WithTx(ctx, func(tx ports.OrderRepository) error {
		o, err := tx.FindByExternalReferenceForUpdate(ctx, externalReference)
		if err != nil {
			return err
		}
		if o.GatewayOrderID == nil {
			o.GatewayOrderID = &gatewayOrderID
			o.UpdatedAt = s.now().UTC()
			if err := tx.UpsertOrder(ctx, o); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	return order, err
}

// PaymentInput is the phase-2 request.
type PaymentInput struct {
	GatewayOrderID  string
	Token           string
	Installments    int
	PaymentMethodID string
	Payer           domain.Payer
	// IdempotencyKey lets a caller retry a transient failure. Empty means a
	// new attempt.
	IdempotencyKey string
}

// PaymentOutcome is the provisional result of phase 2.
type PaymentOutcome struct {
	domain.PaymentResult
	Failure domain.FailureCode `json:"failure_code,omitempty"`
}

// CreatePayment is phase 2. The returned status is provisional; webhooks
// carry the authoritative transitions.
func (s *CheckoutService) CreatePayment(ctx context.Context, in PaymentInput) (*PaymentOutcome, error) {
	if in.GatewayOrderID == "" {
		return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "order_id", Reason: "is required"})
	}
	if in.Token == "" {
		return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "token", Reason: "is required"})
	}
	if in.Installments <= 0 {
		in.Installments = 1
	}
	if err := domain.ValidatePayer(in.Payer); err != nil {
		return nil, domain.NewValidationFailure(err)
	}

	order, err := s.repo.FindByGatewayOrderID(ctx, in.GatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "order_id", Reason: "unknown order"})
		}
		return nil, domain.NewTransientFailure("", err)
	}

	key := in.IdempotencyKey
	if key == "" {
		// A double submit lands on the same attempt; a retry after a failed
		// payment gets a fresh key.
		history, err := s.repo.ListHistory(ctx, order.ID)
		if err != nil {
			return nil, domain.NewTransientFailure("", fmt.Errorf("load payment history: %w", err))
		}
		key = domain.AttemptKey(domain.OpCreatePayment, in.GatewayOrderID, domain.PaymentAttempt(history))
	}

	req := domain.CreatePaymentRequest{
		OrderID:           in.GatewayOrderID,
		Token:             in.Token,
		Installments:      in.Installments,
		PaymentMethodID:   gateway.NormalizePaymentMethod(in.PaymentMethodID),
		PaymentMethodType: gateway.ClassifyPaymentMethod(in.PaymentMethodID),
		NotificationURL:   s.notificationURL,
		Payer:             in.Payer,
	}

	resp, err := s.gateway.CreatePayment(ctx, req, key)
	if err != nil {
		s.logger.Warn("gateway create payment failed", "gateway_order_id", in.GatewayOrderID, "idempotency_key", key, "error", err)
		return nil, translateGatewayError(key, err)
	}

	out := &PaymentOutcome{PaymentResult: domain.PaymentResult{
		PaymentID:      resp.ID,
		Status:         domain.PaymentStatusFromGateway(resp.Status),
		StatusDetail:   resp.StatusDetail,
		IdempotencyKey: key,
	}}
	if out.Status == domain.StatusRejected {
		out.Failure = domain.TranslateProviderCode(resp.StatusDetail)
	}

	s.recordProvisional(ctx, order, in, out)
	return out, nil
}

// recordProvisional writes the synchronous phase-2 result through the
// reconciler. A failure here is healed by the next webhook.
func (s *CheckoutService) recordProvisional(ctx context.Context, order *domain.Order, in PaymentInput, out *PaymentOutcome) {
	if out.PaymentID == "" {
		return
	}

	result, err := s.reconciler.Reconcile(ctx, domain.PaymentUpdate{
		Source:            domain.SourceCheckout,
		PaymentID:         out.PaymentID,
		GatewayOrderID:    in.GatewayOrderID,
		ExternalReference: order.ExternalReference,
		Status:            out.Status,
		StatusDetail:      out.StatusDetail,
		TotalAmount:       order.TotalAmount,
		Currency:          order.Currency,
		Payer:             in.Payer,
		Lines:             order.Items,
		OccurredAt:        s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("provisional reconcile failed", "payment_id", out.PaymentID, "error", err)
		return
	}
	if result.NewlyApproved() {
		s.notifications.PaymentApproved(result.Order)
	}
}

// PaymentMethods lists the gateway's payment methods.
func (s *CheckoutService) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	methods, err := s.gateway.ListPaymentMethods(ctx)
	if err != nil {
		return nil, translateGatewayError("", err)
	}
	return methods, nil
}

// Installments lists installment options for a card BIN and amount.
func (s *CheckoutService) Installments(ctx context.Context, q domain.InstallmentsQuery) ([]domain.InstallmentOption, error) {
	if len(q.BIN) < 6 {
		return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "bin", Reason: "must have at least 6 digits"})
	}
	if !q.Amount.IsPositive() {
		return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "amount", Reason: "must be positive"})
	}
	opts, err := s.gateway.GetInstallments(ctx, q)
	if err != nil {
		return nil, translateGatewayError("", err)
	}
	return opts, nil
}

// CardIssuers lists issuers for a card BIN and payment method.
func (s *CheckoutService) CardIssuers(ctx context.Context, bin, paymentMethodID string) ([]domain.CardIssuer, error) {
	if len(bin) < 6 {
		return nil, domain.NewValidationFailure(&domain.ValidationError{Field: "bin", Reason: "must have at least 6 digits"})
	}
	issuers, err := s.gateway.GetCardIssuers(ctx, bin, paymentMethodID)
	if err != nil {
		return nil, translateGatewayError("", err)
	}
	return issuers, nil
}

// translateGatewayError maps gateway failures onto the payment taxonomy.
func translateGatewayError(key string, err error) error {
	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) && !gwErr.IsRetryable() {
		return domain.NewRejection(gwErr.ProviderCode(), err)
	}
	return domain.NewTransientFailure(key, err)
}
