package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Price parsing errors.
var (
	// ErrEmptyPrice is returned for a blank price string.
	ErrEmptyPrice = errors.New("empty price")

	// ErrNegativePrice is returned for a negative price.
	ErrNegativePrice = errors.New("negative price")
)

// currencySymbols are stripped before numeric parsing.
var currencySymbols = strings.NewReplacer(
	"$", "",
	"€", "",
	"£", "",
	"¥", "",
	"R$", "",
	"USD", "",
	"EUR", "",
	"GBP", "",
	"ZAR", "",
	"R", "",
)

// Price parses a raw price string into a fixed-point decimal. It tolerates
// currency symbols, whitespace, and both 1,299.99 and 1.299,99 separator
// conventions; non-numeric or negative values are rejected.
func Price(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, ErrEmptyPrice
	}

	s = currencySymbols.Replace(s)
	s = strings.Join(strings.Fields(s), "")
	s = normalizeSeparators(s)

	if s == "" {
		return decimal.Decimal{}, ErrEmptyPrice
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparsable price %q: %w", raw, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, ErrNegativePrice
	}

	return d, nil
}

// normalizeSeparators rewrites a price into dot-decimal form. The last
// separator in the string is the decimal mark when it is followed by one
// or two digits; every other separator is a thousands mark.
func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma == -1 && lastDot == -1:
		return s
	case lastComma > lastDot:
		// Comma-decimal convention: 1.299,99
		if decimals := len(s) - lastComma - 1; decimals >= 1 && decimals <= 2 {
			s = strings.ReplaceAll(s[:lastComma], ".", "") + "." + s[lastComma+1:]
			return strings.ReplaceAll(s, ",", "")
		}
		// Trailing comma groups are thousands marks: 1,299
		return strings.ReplaceAll(strings.ReplaceAll(s, ",", ""), ".", "")
	default:
		// Dot-decimal convention: 1,299.99
		return strings.ReplaceAll(s, ",", "")
	}
}
