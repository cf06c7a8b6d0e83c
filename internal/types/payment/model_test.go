package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethod(t *testing.T) {
	m, ok := ParseMethod("")
	assert.True(t, ok)
	assert.Equal(t, MethodCard, m)

	m, ok = ParseMethod("mobile-money")
	assert.True(t, ok)
	assert.Equal(t, MethodMobileMoney, m)

	_, ok = ParseMethod("crypto")
	assert.False(t, ok)
}

func TestChannels(t *testing.T) {
	assert.Equal(t, []string{"mobile_money"}, MethodMobileMoney.Channels())
	assert.Equal(t, []string{"card", "bank", "mobile_money"}, MethodCard.Channels())
	assert.True(t, MethodCard.Online())
	assert.False(t, MethodCash.Online())
}
