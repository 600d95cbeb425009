package domain

import "strings"

// Commission is max(price*bps/10000, min), never more than price.
func Commission(price, bps, min int64) int64 {
	if price <= 0 {
		return 0
	}
	fee := price * bps / 10000
	if fee < min {
		fee = min
	}
	if fee > price {
		fee = price
	}
	if fee < 0 {
		fee = 0
	}
	return fee
}

func NormalizeCurrency(c string) string { return strings.ToLower(strings.TrimSpace(c)) }
