// Package phone normalizes and validates international phone numbers.
package phone

import (
	"fmt"
	"strings"

	"github.com/go-otp-onboarding/internal/domain"
	"github.com/go-otp-onboarding/internal/pkg/validate"
)

// Prefix is the international-format marker every stored number carries.
const Prefix = "+"

// Normalize prepends the international marker when it is missing.
// Nothing else about the number is changed.
func Normalize(number string) string {
	if strings.HasPrefix(number, Prefix) {
		return number
	}
	return Prefix + number
}

// Validate reports whether number is in E.164 form. Callers pass an
// already-normalized number.
func Validate(number string) error {
	if err := validate.Var(number, "required,e164"); err != nil {
		return fmt.Errorf("phone number %q is not in international format: %w", number, domain.ErrBadRequest)
	}
	return nil
}

// Parse normalizes then validates.
func Parse(number string) (string, error) {
	n := Normalize(number)
	if err := Validate(n); err != nil {
		return "", err
	}
	return n, nil
}
