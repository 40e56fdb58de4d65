package notify

import (
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// FormatMoney renders an amount in minor units for the given locale,
// e.g. 123450 USD in English as "$1,234.50". Unknown currencies fall back to
// the ISO code with two decimals.
func FormatMoney(tag language.Tag, m subscription.Money) string {
	p := message.NewPrinter(tag)

	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return p.Sprintf("%v %s", number.Decimal(float64(m.Amount)/100, number.Scale(2)), m.Currency)
	}

	scale, _ := currency.Standard.Rounding(unit)
	value := float64(m.Amount) / math.Pow10(scale)
	return p.Sprint(currency.Symbol(unit)) + p.Sprint(number.Decimal(value, number.Scale(scale)))
}
