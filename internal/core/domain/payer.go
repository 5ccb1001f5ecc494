package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator"
)

// Identification is a national identity document.
type Identification struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number,omitempty"`
}

// Address is the postal address snapshot captured with the payer.
type Address struct {
	StreetName   string `json:"street_name,omitempty"`
	StreetNumber string `json:"street_number,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Country      string `json:"country,omitempty"`
}

// Payer is the buyer identity captured at payment time.
type Payer struct {
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Email          string         `json:"email"`
	Phone          string         `json:"phone,omitempty"`
	Address        Address        `json:"address,omitempty"`
	Identification Identification `json:"identification,omitempty"`
}

// IsZero reports whether no payer data was captured.
func (p Payer) IsZero() bool {
	return p.Email == "" && p.FirstName == "" && p.LastName == ""
}

// FullName joins first and last name.
func (p Payer) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

var validate = validator.New()

// ValidatePayer checks the payer field by field and returns the first failure.
func ValidatePayer(p Payer) error {
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if err := validate.Var(email, "email"); err != nil {
		return &ValidationError{Field: "email", Reason: "is not a valid address"}
	}
	if utf8.RuneCountInString(strings.TrimSpace(p.FirstName)) < 2 {
		return &ValidationError{Field: "first_name", Reason: "must have at least 2 characters"}
	}
	if utf8.RuneCountInString(strings.TrimSpace(p.LastName)) < 2 {
		return &ValidationError{Field: "last_name", Reason: "must have at least 2 characters"}
	}
	return validateIdentification(p.Identification)
}

func validateIdentification(id Identification) error {
	if id.Type == "" {
		return nil
	}
	number := digitsOnly(id.Number)

	switch strings.ToUpper(id.Type) {
	case "DNI":
		if len(number) < 7 || len(number) > 8 {
			return &ValidationError{Field: "identification.number", Reason: "DNI must have 7 or 8 digits"}
		}
	case "CPF":
		if len(number) != 11 {
			return &ValidationError{Field: "identification.number", Reason: "CPF must have 11 digits"}
		}
		if !ValidCPF(number) {
			return &ValidationError{Field: "identification.number", Reason: "CPF check digits do not match"}
		}
	}
	return nil
}

// ValidCPF verifies both CPF check digits. Punctuation is ignored.
func ValidCPF(cpf string) bool {
	d := digitsOnly(cpf)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}
	return cpfDigit(d[:9], 10) == int(d[9]-'0') && cpfDigit(d[:10], 11) == int(d[10]-'0')
}

func cpfDigit(digits string, weight int) int {
	sum := 0
	for _, r := range digits {
		sum += int(r-'0') * weight
		weight--
	}
	rem := (sum * 10) % 11
	if rem == 10 || rem == 11 {
		return 0
	}
	return rem
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
