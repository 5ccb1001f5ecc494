package gateway

import (
	"strings"

	"github.com/DanielPopoola/storefront-checkout/internal/core/domain"
)

// DefaultPaymentMethod is used for ids the tables do not recognize. The
// gateway performs the final validation.
const DefaultPaymentMethod = "visa"

var canonicalBrands = map[string]bool{
	"visa":      true,
	"master":    true,
	"amex":      true,
	"naranja":   true,
	"cabal":     true,
	"tarshop":   true,
	"cencosud":  true,
	"diners":    true,
	"argencard": true,
	"cmr":       true,
	"elo":       true,
	"hipercard": true,
	"oca":       true,
	"lider":     true,
	"magna":     true,
	"presto":    true,
	"codensa":   true,
	"maestro":   true,
	"carnet":    true,
	"sodexo":    true,
}

var brandAliases = map[string]string{
	"mastercard":       "master",
	"american_express": "amex",
	"americanexpress":  "amex",
	"diners_club":      "diners",
	"debvisa":          "visa",
	"debmaster":        "master",
	"debcabal":         "cabal",
	"debelo":           "elo",
	"debmaestro":       "maestro",
}

var debitOnly = map[string]bool{
	"maestro": true,
}

// NormalizePaymentMethod maps provider aliases to a canonical brand id.
func NormalizePaymentMethod(id string) string {
	key := strings.ToLower(strings.TrimSpace(id))
	key = strings.TrimPrefix(key, "debit-")
	key = strings.TrimPrefix(key, "debit_")

	if canonicalBrands[key] {
		return key
	}
	if brand, ok := brandAliases[key]; ok {
		return brand
	}
	if strings.HasPrefix(key, "deb") && canonicalBrands[strings.TrimPrefix(key, "deb")] {
		return strings.TrimPrefix(key, "deb")
	}
	return DefaultPaymentMethod
}

// ClassifyPaymentMethod reports whether the raw id names a debit or credit card.
func ClassifyPaymentMethod(id string) domain.PaymentMethodType {
	key := strings.ToLower(strings.TrimSpace(id))
	if strings.HasPrefix(key, "deb") || debitOnly[key] {
		return domain.MethodDebitCard
	}
	return domain.MethodCreditCard
}
