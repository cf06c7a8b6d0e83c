package reference

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var refPattern = regexp.MustCompile(`^[A-Z]+-\d{8}-\d{4}$`)

func TestGenerateFormat(t *testing.T) {
	for i := 0; i < 500; i++ {
		assert.Regexp(t, refPattern, Generate(PrefixPayment))
		assert.Regexp(t, refPattern, Generate(PrefixOrder))
	}
}

func TestFormat(t *testing.T) {
	now := time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "PAY-20260307-0042", format(PrefixPayment, now, 42))
	assert.Equal(t, "ORD-20260307-0000", format(PrefixOrder, now, 0))
	assert.Equal(t, "ORD-20260307-9999", format(PrefixOrder, now, 9999))
}
