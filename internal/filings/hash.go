package filings

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// HashOptions sets the rounding applied before hashing
type HashOptions struct {
	PercentPrecision int32
	PricePrecision   int32
}

// DefaultHashOptions rounds percentages to 3 places and prices to 2
func DefaultHashOptions() HashOptions {
	return HashOptions{PercentPrecision: 3, PricePrecision: 2}
}

// Hash is the FilingHash of r: a SHA-256 over a fixed, ordered field list
// with surface formatting removed. Equal hashes mean the same real-world event.
func Hash(r Row, opts HashOptions) string {
	day := ""
	if d, ok := r.Day(); ok {
		day = d.Format("2006-01-02")
	}

	fields := []string{
		strings.ToUpper(strings.TrimSpace(r.Symbol)),
		day,
		strings.ToLower(strings.TrimSpace(r.TransactionType)),
		strings.ToLower(strings.Join(strings.Fields(r.HolderName), " ")),
		canon(r.HoldingBefore),
		canon(r.HoldingAfter),
		canon(round(r.SharePercentageBefore, opts.PercentPrecision)),
		canon(round(r.SharePercentageAfter, opts.PercentPrecision)),
		canon(r.AmountTransaction),
		canon(round(r.Price, opts.PricePrecision)),
	}

	digest := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(digest[:])
}

func round(d *decimal.Decimal, places int32) *decimal.Decimal {
	if d == nil {
		return nil
	}
	r := d.Round(places)
	return &r
}

// canon renders d without trailing zeros so 100, 100.0 and "100" agree
func canon(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	if d.IsZero() {
		return "0"
	}
	return d.String()
}
