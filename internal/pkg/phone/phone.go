package phone

import (
	"fmt"

	"github.com/go-api-auth/internal/domain"
	"github.com/nyaruka/phonenumbers"
)

// Normalizer turns user-entered phone numbers into E.164 so the same number
// always maps to the same store key and user record.
type Normalizer struct {
	region string
}

// NewNormalizer uses region (ISO 3166 alpha-2) for numbers given without a
// country code.
func NewNormalizer(region string) *Normalizer {
	return &Normalizer{region: region}
}

func (n *Normalizer) Normalize(raw string) (string, error) {
	num, err := phonenumbers.Parse(raw, n.region)
	if err != nil {
		return "", fmt.Errorf("parse phone number: %w", domain.ErrBadRequest)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("invalid phone number: %w", domain.ErrBadRequest)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
