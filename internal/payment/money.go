package payment

import "github.com/shopspring/decimal"

// Money converts between the stored smallest-unit integers and the major
// units some provider APIs expect.
type Money struct {
	Currency string
	Exponent int32
}

// Major returns amount expressed in major units, e.g. 1050 -> 10.5 for an
// exponent of 2.  XOF has exponent 0 so the value is unchanged.
func (m Money) Major(amount int64) decimal.Decimal {
	return decimal.New(amount, -m.Exponent)
}

// Format renders amount for humans, e.g. 5000 -> "5000 XOF".
func (m Money) Format(amount int64) string {
	return m.Major(amount).StringFixed(m.Exponent) + " " + m.Currency
}
