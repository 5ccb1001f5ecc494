package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed gateway response")

// GatewayError is a non-2xx answer from the payment gateway.
type GatewayError struct {
	StatusCode int
	Code       string
	Message    string
	Causes     []string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error: %s (status: %d, code: %s)", e.Message, e.StatusCode, e.ProviderCode())
}

// IsRetryable reports whether the failure is on the gateway side.
func (e *GatewayError) IsRetryable() bool {
	return e.StatusCode >= 500
}

// IsNotFound reports whether the requested resource does not exist.
func (e *GatewayError) IsNotFound() bool {
	return e.StatusCode == 404
}

// ProviderCode returns the most specific code the gateway sent: the first
// cause when present, otherwise the top-level code.
func (e *GatewayError) ProviderCode() string {
	if len(e.Causes) > 0 && e.Causes[0] != "" {
		return e.Causes[0]
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("%d", e.StatusCode)
}

type gatewayErrorResponse struct {
	Message string       `json:"message"`
	Err     string       `json:"error"`
	Status  int          `json:"status"`
	Cause   []errorCause `json:"cause"`
}

type errorCause struct {
	Code        json.RawMessage `json:"code"`
	Description string          `json:"description"`
}

// parseError decodes an error body. Unknown bodies keep the raw text as the message.
func parseError(status int, body []byte) *GatewayError {
	gerr := &GatewayError{StatusCode: status}

	var resp gatewayErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		gerr.Message = strings.TrimSpace(string(body))
		return gerr
	}

	gerr.Code = resp.Err
	gerr.Message = resp.Message
	for _, c := range resp.Cause {
		gerr.Causes = append(gerr.Causes, strings.Trim(string(c.Code), `"`))
	}
	if gerr.Message == "" && len(resp.Cause) > 0 {
		gerr.Message = resp.Cause[0].Description
	}
	return gerr
}
