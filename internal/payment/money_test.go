package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	xof := Money{Currency: "XOF"}
	assert.Equal(t, "5000", xof.Major(5000).String())
	assert.Equal(t, "5000 XOF", xof.Format(5000))

	eur := Money{Currency: "EUR", Exponent: 2}
	assert.Equal(t, "10.5", eur.Major(1050).String())
	assert.Equal(t, "10.50 EUR", eur.Format(1050))
}
