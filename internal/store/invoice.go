package store

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// maxInvoiceAttempts bounds regeneration after an invoice number collision.
const maxInvoiceAttempts = 3

// GenerateInvoiceNumber builds an invoice number of the form
// INV-<last 6 digits of the millisecond clock>-<3 random digits>.
func GenerateInvoiceNumber(now time.Time, intn func(int) int) string {
	return fmt.Sprintf("INV-%06d-%03d", now.UnixMilli()%1_000_000, intn(1000))
}

// nextInvoiceNumber is replaced in tests to force collisions.
var nextInvoiceNumber = func() string {
	return GenerateInvoiceNumber(time.Now(), rand.IntN)
}
