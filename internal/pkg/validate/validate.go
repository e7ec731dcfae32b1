package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-api-auth/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level validator. Custom registrations belong in init().
var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s using its validate tags. Failures wrap
// domain.ErrBadRequest with one message per failing field.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s: %w", strings.Join(msgs, "; "), domain.ErrBadRequest)
}
