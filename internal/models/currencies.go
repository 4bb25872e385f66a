package models

// BaseCurrency is the reporting currency; invoices in it always carry an
// exchange rate of exactly 1.
const BaseCurrency = "CAD"

// Recognized ISO 4217 currency codes. Static reference data consumed, not
// owned, by the invoice validation path.
var currencyCodes = map[string]bool{
	"CAD": true,
	"USD": true,
	"EUR": true,
	"GBP": true,
	"AUD": true,
	"NZD": true,
	"CHF": true,
	"JPY": true,
	"CNY": true,
	"MXN": true,
	"INR": true,
	"BRL": true,
}

// ValidCurrency reports whether code is a recognized ISO currency code.
func ValidCurrency(code string) bool {
	return currencyCodes[code]
}
