package utils

import (
	"bytes"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Numeric accepts both JSON numbers and numeric strings ("12.5" or 12.5).
// Clients are inconsistent about quoting quantities; normalize here once.
type Numeric string

func (n *Numeric) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = ""
		return nil
	}
	s := strings.TrimSpace(strings.Trim(string(data), `"`))
	*n = Numeric(s)
	return nil
}

func (n Numeric) IsZeroValue() bool {
	return strings.TrimSpace(string(n)) == ""
}

func (n Numeric) Decimal() (decimal.Decimal, error) {
	s := strings.TrimSpace(string(n))
	if s == "" {
		return decimal.Zero, errors.New("quantity is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.New("quantity must be numeric")
	}
	return d, nil
}
