package fare

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ridedispatch/internal/domain"
)

const defaultDecimals = 2

var (
	// ErrCurrencyRequired is returned when no currency code is given.
	ErrCurrencyRequired = fmt.Errorf("%w: currency is required", domain.ErrInvalidArgument)

	// ErrInvalidAmount is returned for an amount string that is not a non-negative decimal.
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", domain.ErrInvalidArgument)
)

var amountPattern = regexp.MustCompile(`^(\d+)(\.(\d*))?$`)

// Decimals returns the number of minor-unit digits for an ISO 4217 code.
// Unknown codes fall back to two.
func Decimals(currency string) (int, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return 0, ErrCurrencyRequired
	}

	switch code {
	case "BIF", "CLP", "DJF", "GNF", "ISK", "JPY", "KMF", "KRW",
		"PYG", "RWF", "UGX", "VND", "VUV", "XAF", "XOF", "XPF":
		return 0, nil
	case "BHD", "IQD", "JOD", "KWD", "LYD", "OMR", "TND":
		return 3, nil
	default:
		return defaultDecimals, nil
	}
}

// ToMinorUnits converts a decimal amount such as "12.34" or "1,000" into integer
// minor units of currency. Extra fraction digits are truncated.
func ToMinorUnits(amount, currency string) (int64, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(amount, ",", ""))
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}

	match := amountPattern.FindStringSubmatch(cleaned)
	if match == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	decimals, err := Decimals(currency)
	if err != nil {
		return 0, err
	}

	fraction := match[3]
	if len(fraction) > decimals {
		fraction = fraction[:decimals]
	}
	fraction += strings.Repeat("0", decimals-len(fraction))

	minor, err := strconv.ParseInt(match[1]+fraction, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return minor, nil
}
