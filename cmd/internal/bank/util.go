package bank

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// NormalizeMobile canonicalizes a mobile number for lookups: digits only,
// the 880 country code stripped, and a leading 0 restored on bare 10-digit
// subscriber numbers.
func NormalizeMobile(mobile string) string {
	var b strings.Builder
	for _, c := range mobile {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	digits := b.String()

	digits = strings.TrimPrefix(digits, "880")
	if !strings.HasPrefix(digits, "0") && len(digits) == 10 {
		digits = "0" + digits
	}
	return digits
}

// NewCallID generates a tracking identifier for bank API calls:
// unix seconds followed by nine random digits.
func NewCallID(now time.Time) string {
	return fmt.Sprintf("%d%09d", now.Unix(), randomBelow(1_000_000_000))
}

// NewRefNo generates a reference number for the account-details API.
func NewRefNo(now time.Time) string {
	return fmt.Sprintf("%sAHw%02d", now.Format("20060102150405"), 10+randomBelow(90))
}

func randomBelow(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		// Tracking IDs are best-effort; a zero suffix is still usable.
		return 0
	}
	return v.Int64()
}
