package store

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateInvoiceNumber(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)

	got := GenerateInvoiceNumber(now, func(int) int { return 7 })
	assert.Equal(t, "INV-123456-007", got)

	// Leading zeros in the clock component are kept.
	got = GenerateInvoiceNumber(time.UnixMilli(1_700_000_000_042), func(int) int { return 999 })
	assert.Equal(t, "INV-000042-999", got)

	pattern := regexp.MustCompile(`^INV-\d{6}-\d{3}$`)
	for range 100 {
		assert.Regexp(t, pattern, nextInvoiceNumber())
	}
}
