package handler

import (
	"net/http"
	"strings"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/shopspring/decimal"
)

// HandlePaymentMethods lists card brands
// @Summary      List payment methods
// @Tags         checkout
// @Produce      json
// @Success      200  {object}  APIResponse
// @Failure      503  {object}  APIResponse
// @Router       /checkout/payment-methods [get]
func (h *CheckoutHandler) HandlePaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.checkout.PaymentMethods(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, methods)
}

// HandleInstallments lists installment plans for a card
// @Summary      List installments
// @Tags         checkout
// @Produce      json
// @Param        bin                query     string  true   "First digits of the card"
// @Param        amount             query     string  true   "Order total"
// @Param        currency           query     string  false  "ISO currency"
// @Param        payment_method_id  query     string  false  "Card brand"
// @Success      200                {object}  APIResponse
// @Failure      400                {object}  APIResponse
// @Router       /checkout/installments [get]
func (h *CheckoutHandler) HandleInstallments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := decimal.NewFromString(q.Get("amount"))
	if err != nil {
		respondWithError(w, r, domain.NewValidationFailure(&domain.ValidationError{Field: "amount", Reason: "must be a number"}))
		return
	}

	opts, err := h.checkout.Installments(r.Context(), domain.InstallmentsQuery{
		BIN:             q.Get("bin"),
		Amount:          amount,
		Currency:        strings.ToUpper(q.Get("currency")),
		PaymentMethodID: q.Get("payment_method_id"),
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, opts)
}

// HandleCardIssuers lists issuing banks for a card
// @Summary      List card issuers
// @Tags         checkout
// @Produce      json
// @Param        bin                query     string  true  "First digits of the card"
// @Param        payment_method_id  query     string  true  "Card brand"
// @Success      200                {object}  APIResponse
// @Failure      400                {object}  APIResponse
// @Router       /checkout/card-issuers [get]
func (h *CheckoutHandler) HandleCardIssuers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	issuers, err := h.checkout.CardIssuers(r.Context(), q.Get("bin"), q.Get("payment_method_id"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, issuers)
}

// jsonFieldName drops the struct name from a validator namespace such as
// "CreateOrderRequest.lines[0].quantity".
func jsonFieldName(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
