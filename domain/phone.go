package domain

import (
	"strings"
)

// PhoneNumber is a normalized E.164-style phone number ("+<calling code><digits>").
type PhoneNumber string

func (p PhoneNumber) IsZero() bool { return p == "" }
func (p PhoneNumber) String() string { return string(p) }

// callingCodes maps ISO 3166-1 alpha-2 country codes to calling-code prefixes
// for the countries the service operates in.
var callingCodes = map[string]string{
	"GE": "995",
	"AM": "374",
	"AZ": "994",
	"TR": "90",
	"UA": "380",
	"DE": "49",
	"GB": "44",
	"US": "1",
}

// NormalizePhone strips formatting from a raw phone number and prefixes the
// country calling code when the number is given in national form. The country
// argument is an ISO alpha-2 code; an unknown country or an empty digit string
// is a validation error.
func NormalizePhone(raw, country string) (PhoneNumber, error) {
	digits := strings.Builder{}
	hadPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	num := digits.String()
	if num == "" {
		return "", WrapError(ErrCodeInvalid, "phone number has no digits", ErrInvalidCommand)
	}

	code, ok := callingCodes[strings.ToUpper(strings.TrimSpace(country))]
	if !ok {
		return "", WrapError(ErrCodeInvalid, "unsupported phone country", ErrInvalidCommand)
	}

	// "00" is the common international dial-out prefix.
	if strings.HasPrefix(num, "00") {
		num = num[2:]
		hadPlus = true
	}

	if hadPlus || strings.HasPrefix(num, code) {
		if !strings.HasPrefix(num, code) {
			return "", WrapError(ErrCodeInvalid, "phone number does not match country", ErrInvalidCommand)
		}
		return PhoneNumber("+" + num), nil
	}

	// National form: drop the trunk zero before prefixing the calling code.
	num = strings.TrimPrefix(num, "0")
	if num == "" {
		return "", WrapError(ErrCodeInvalid, "phone number has no digits", ErrInvalidCommand)
	}
	return PhoneNumber("+" + code + num), nil
}
