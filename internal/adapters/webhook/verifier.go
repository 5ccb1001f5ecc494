// Package webhook authenticates gateway notifications.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Signature"
	RequestIDHeader = "X-Request-Id"

	// ReplayWindow is how old a signature timestamp may be.
	ReplayWindow = 300 * time.Second
)

// Outcome is the verdict of a signature check.
type Outcome int

const (
	Rejected Outcome = iota
	Verified
	// Unverified means no secret is configured and the check was skipped.
	Unverified
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case Unverified:
		return "unverified"
	default:
		return "rejected"
	}
}

const (
	ReasonMissingSignature   = "missing_signature"
	ReasonMissingRequestID   = "missing_request_id"
	ReasonMalformedSignature = "malformed_signature"
	ReasonExpired            = "expired_timestamp"
	ReasonMismatch           = "signature_mismatch"
	ReasonNoSecret           = "no_secret_configured"
)

type Result struct {
	Outcome Outcome
	Reason  string
}

// Accepted reports whether the notification may be processed.
func (r Result) Accepted() bool {
	return r.Outcome != Rejected
}

type Verifier struct {
	secret []byte
	now    func() time.Time
	logger *slog.Logger
}

func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	if secret == "" {
		logger.Warn("webhook secret not configured, signatures will not be checked")
	}
	return &Verifier{
		secret: []byte(secret),
		now:    time.Now,
		logger: logger,
	}
}

// WithClock replaces the time source.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Verify checks the signature headers against dataID, the resource id the
// notification names.
func (v *Verifier) Verify(h http.Header, dataID string) Result {
	if len(v.secret) == 0 {
		v.logger.Warn("webhook accepted without signature check", "data_id", dataID)
		return Result{Outcome: Unverified, Reason: ReasonNoSecret}
	}

	signature := h.Get(SignatureHeader)
	if signature == "" {
		return Result{Outcome: Rejected, Reason: ReasonMissingSignature}
	}
	requestID := h.Get(RequestIDHeader)
	if requestID == "" {
		return Result{Outcome: Rejected, Reason: ReasonMissingRequestID}
	}

	ts, digest, ok := parseSignature(signature)
	if !ok {
		return Result{Outcome: Rejected, Reason: ReasonMalformedSignature}
	}
	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return Result{Outcome: Rejected, Reason: ReasonMalformedSignature}
	}

	age := v.now().Sub(time.Unix(unix, 0))
	if age > ReplayWindow || age < -ReplayWindow {
		return Result{Outcome: Rejected, Reason: ReasonExpired}
	}

	received, err := hex.DecodeString(digest)
	if err != nil {
		return Result{Outcome: Rejected, Reason: ReasonMalformedSignature}
	}
	expected := v.mac(Manifest(dataID, requestID, ts))
	if !hmac.Equal(received, expected) {
		return Result{Outcome: Rejected, Reason: ReasonMismatch}
	}

	return Result{Outcome: Verified}
}

func (v *Verifier) mac(manifest string) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write([]byte(manifest))
	return m.Sum(nil)
}

var alphanumeric = regexp.MustCompile(`^[a-zA-Z0-9]+$`)

// Manifest builds the signed string. Alphanumeric ids are lower-cased.
func Manifest(dataID, requestID, ts string) string {
	if alphanumeric.MatchString(dataID) {
		dataID = strings.ToLower(dataID)
	}
	return fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
}

// Sign returns the x-signature value the gateway would send.
func Sign(secret, dataID, requestID string, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(Manifest(dataID, requestID, unix)))
	return "ts=" + unix + ",v1=" + hex.EncodeToString(m.Sum(nil))
}

func parseSignature(header string) (ts, v1 string, ok bool) {
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1, ts != "" && v1 != ""
}
