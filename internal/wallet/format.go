package wallet

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders a whole-unit amount with thousands separators, e.g. "NGN 12,500".
func FormatAmount(currency string, amount int64) string {
	return printer.Sprintf("%s %d", currency, amount)
}
