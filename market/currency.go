package market

import (
	"strings"

	"github.com/Rhymond/go-money"
)

// NormalizeCurrency upper-cases code and reports whether it is a known ISO
// 4217 currency.
func NormalizeCurrency(code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", false
	}
	return code, money.GetCurrency(code) != nil
}
