package service

import (
	"crypto/rand"
	"math/big"
	"time"
)

const (
	invoiceAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	invoiceSuffixLen = 6
)

// InvoiceGenerator produces candidate invoice numbers. Uniqueness is enforced
// by the store; callers retry on collision.
type InvoiceGenerator interface {
	Next(at time.Time) (string, error)
}

type randomInvoiceGenerator struct{}

// NewInvoiceGenerator returns a generator of INV-yyyyMMdd-XXXXXX numbers with a
// crypto/rand suffix.
func NewInvoiceGenerator() InvoiceGenerator { return randomInvoiceGenerator{} }

func (randomInvoiceGenerator) Next(at time.Time) (string, error) {
	suffix := make([]byte, invoiceSuffixLen)
	max := big.NewInt(int64(len(invoiceAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		suffix[i] = invoiceAlphabet[n.Int64()]
	}
	return "INV-" + at.UTC().Format("20060102") + "-" + string(suffix), nil
}
