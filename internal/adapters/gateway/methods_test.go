package gateway_test

import (
	"testing"

	"github.com/DanielPopoola/storefront-checkout/internal/adapters/gateway"
	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePaymentMethod(t *testing.T) {
	cases := map[string]string{
		"visa":        "visa",
		"VISA":        "visa",
		"debvisa":     "visa",
		"debit-visa":  "visa",
		"debmaster":   "master",
		"mastercard":  "master",
		"debcabal":    "cabal",
		"amex":        "amex",
		"debnaranja":  "naranja",
		"mystery_pay": gateway.DefaultPaymentMethod,
		"":            gateway.DefaultPaymentMethod,
	}

	for in, want := range cases {
		assert.Equal(t, want, gateway.NormalizePaymentMethod(in), in)
	}
}

func TestClassifyPaymentMethod(t *testing.T) {
	assert.Equal(t, domain.MethodDebitCard, gateway.ClassifyPaymentMethod("debvisa"))
	assert.Equal(t, domain.MethodDebitCard, gateway.ClassifyPaymentMethod("debit-master"))
	assert.Equal(t, domain.MethodDebitCard, gateway.ClassifyPaymentMethod("maestro"))
	assert.Equal(t, domain.MethodCreditCard, gateway.ClassifyPaymentMethod("visa"))
	assert.Equal(t, domain.MethodCreditCard, gateway.ClassifyPaymentMethod("amex"))
}
