package domain

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// FailureCode is the stable internal code exposed to callers. Provider codes
// never leave the service except through logs.
type FailureCode string

const (
	FailureInvalidCard           FailureCode = "invalid_card"
	FailureExpiredCard           FailureCode = "expired_card"
	FailureInsufficientFunds     FailureCode = "insufficient_funds"
	FailureDisabledCard          FailureCode = "disabled_card"
	FailureInvalidToken          FailureCode = "invalid_token"
	FailureDuplicatePayment      FailureCode = "duplicate_payment"
	FailureRequiresAuthorization FailureCode = "requires_authorization"
	FailureInvalidCredentials    FailureCode = "invalid_credentials"
	FailureGeneric               FailureCode = "generic"

	FailureValidation FailureCode = "validation_error"
	FailureTemporary  FailureCode = "temporarily_unavailable"
)

// providerCodes maps gateway error codes and status details to internal codes.
var providerCodes = map[string]FailureCode{
	"cc_rejected_bad_filled_card_number":   FailureInvalidCard,
	"cc_rejected_bad_filled_security_code": FailureInvalidCard,
	"cc_rejected_bad_filled_other":         FailureInvalidCard,
	"205":                                  FailureInvalidCard,
	"E301":                                 FailureInvalidCard,
	"E302":                                 FailureInvalidCard,
	"cc_rejected_bad_filled_date":          FailureExpiredCard,
	"208":                                  FailureExpiredCard,
	"209":                                  FailureExpiredCard,
	"325":                                  FailureExpiredCard,
	"326":                                  FailureExpiredCard,
	"cc_rejected_insufficient_amount":      FailureInsufficientFunds,
	"cc_rejected_card_disabled":            FailureDisabledCard,
	"cc_rejected_blacklist":                FailureDisabledCard,
	"2006":                                 FailureInvalidToken,
	"3003":                                 FailureInvalidToken,
	"invalid_token":                        FailureInvalidToken,
	"cc_rejected_duplicated_payment":       FailureDuplicatePayment,
	"cc_rejected_call_for_authorize":       FailureRequiresAuthorization,
	"401":                                  FailureInvalidCredentials,
	"unauthorized":                         FailureInvalidCredentials,
	"invalid_access_token":                 FailureInvalidCredentials,
}

// TranslateProviderCode returns the internal code for a provider code, or
// FailureGeneric when the code is unknown.
func TranslateProviderCode(code string) FailureCode {
	if fc, ok := providerCodes[strings.TrimSpace(code)]; ok {
		return fc
	}
	return FailureGeneric
}

// SupportedLanguages lists the locales with translated failure messages. The
// first entry is the fallback.
var SupportedLanguages = []language.Tag{
	language.Spanish,
	language.Portuguese,
	language.English,
}

var failureMessages = map[FailureCode]map[language.Base]string{
	FailureInvalidCard: {
		base("es"): "Revisa los datos de tu tarjeta.",
		base("pt"): "Verifique os dados do seu cartão.",
		base("en"): "Please check your card details.",
	},
	FailureExpiredCard: {
		base("es"): "La fecha de vencimiento de la tarjeta no es válida.",
		base("pt"): "A data de validade do cartão é inválida.",
		base("en"): "The card expiration date is invalid.",
	},
	FailureInsufficientFunds: {
		base("es"): "Tu tarjeta no tiene fondos suficientes.",
		base("pt"): "Seu cartão não tem saldo suficiente.",
		base("en"): "Your card has insufficient funds.",
	},
	FailureDisabledCard: {
		base("es"): "Tu tarjeta está deshabilitada. Contacta a tu banco.",
		base("pt"): "Seu cartão está desabilitado. Entre em contato com seu banco.",
		base("en"): "Your card is disabled. Please contact your bank.",
	},
	FailureInvalidToken: {
		base("es"): "La sesión de pago expiró. Ingresa la tarjeta nuevamente.",
		base("pt"): "A sessão de pagamento expirou. Informe o cartão novamente.",
		base("en"): "The payment session expired. Please enter your card again.",
	},
	FailureDuplicatePayment: {
		base("es"): "Ya registramos un pago idéntico.",
		base("pt"): "Já registramos um pagamento idêntico.",
		base("en"): "An identical payment was already made.",
	},
	FailureRequiresAuthorization: {
		base("es"): "Debes autorizar el pago con tu banco.",
		base("pt"): "Você precisa autorizar o pagamento com seu banco.",
		base("en"): "You must authorize the payment with your bank.",
	},
	FailureInvalidCredentials: {
		base("es"): "No pudimos procesar el pago. Intenta más tarde.",
		base("pt"): "Não foi possível processar o pagamento. Tente mais tarde.",
		base("en"): "We could not process the payment. Please try later.",
	},
	FailureGeneric: {
		base("es"): "No pudimos procesar el pago. Intenta nuevamente.",
		base("pt"): "Não foi possível processar o pagamento. Tente novamente.",
		base("en"): "We could not process the payment. Please try again.",
	},
	FailureValidation: {
		base("es"): "Revisa los datos ingresados.",
		base("pt"): "Verifique os dados informados.",
		base("en"): "Please check the information you entered.",
	},
	FailureTemporary: {
		base("es"): "El servicio de pagos no está disponible. Intenta nuevamente.",
		base("pt"): "O serviço de pagamentos está indisponível. Tente novamente.",
		base("en"): "The payment service is unavailable. Please try again.",
	},
}

func base(s string) language.Base {
	b, _ := language.ParseBase(s)
	return b
}

// Message returns the user-safe message for code in the given language.
// Unknown codes get the generic message; unsupported languages get Spanish.
func (c FailureCode) Message(tag language.Tag) string {
	msgs, ok := failureMessages[c]
	if !ok {
		msgs = failureMessages[FailureGeneric]
	}
	b, _ := tag.Base()
	if m, ok := msgs[b]; ok {
		return m
	}
	return msgs[base("es")]
}

// domainMessages holds the caller-facing text for DomainError codes. A %s
// verb, when present, receives the error's Field.
var domainMessages = map[string]map[language.Base]string{
	ErrCodeOrderNotFound: {
		base("es"): "No encontramos la orden.",
		base("pt"): "Não encontramos o pedido.",
		base("en"): "The order was not found.",
	},
	ErrCodeMissingField: {
		base("es"): "Falta el campo obligatorio %s.",
		base("pt"): "O campo obrigatório %s está ausente.",
		base("en"): "The required field %s is missing.",
	},
	ErrCodeBelowMinimum: {
		base("es"): "El monto es menor al mínimo permitido.",
		base("pt"): "O valor é menor que o mínimo permitido.",
		base("en"): "The amount is below the allowed minimum.",
	},
	ErrCodeUnsupportedSize: {
		base("es"): "El tamaño solicitado no está disponible.",
		base("pt"): "O tamanho solicitado não está disponível.",
		base("en"): "The requested size is not available.",
	},
	ErrCodeEmptyCart: {
		base("es"): "Tu carrito está vacío.",
		base("pt"): "Seu carrinho está vazio.",
		base("en"): "Your cart is empty.",
	},
	ErrCodeUnknownCurrency: {
		base("es"): "La moneda no está soportada.",
		base("pt"): "A moeda não é suportada.",
		base("en"): "The currency is not supported.",
	},
	ErrCodeResourceNotFound: {
		base("es"): "No encontramos el pago en el procesador.",
		base("pt"): "Não encontramos o pagamento no processador.",
		base("en"): "The payment was not found at the processor.",
	},
}

// LocalizedMessage returns the caller-facing message for e in the given
// language. Codes without translations keep e.Message; unsupported
// languages get Spanish.
func (e *DomainError) LocalizedMessage(tag language.Tag) string {
	msgs, ok := domainMessages[e.Code]
	if !ok {
		return e.Message
	}
	b, _ := tag.Base()
	m, ok := msgs[b]
	if !ok {
		m = msgs[base("es")]
	}
	if strings.Contains(m, "%s") {
		return fmt.Sprintf(m, e.Field)
	}
	return m
}
