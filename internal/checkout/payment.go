package checkout

import (
	"strconv"
	"strings"
	"time"
)

// Payment is the simulated payment input. Nothing is ever charged; any
// input that looks like a real card is accepted.
type Payment struct {
	Method     string `json:"payment_method"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
}

// Validate returns the list of problems with the payment input,
// human-readable and safe to show to the customer. An empty list means the
// payment passes.
func (p Payment) Validate(now time.Time) []string {
	var problems []string

	digits := strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, p.CardNumber)

	if !allDigits(digits) || len(digits) < 12 || len(digits) > 19 || !luhn(digits) {
		problems = append(problems, "card number is invalid")
	}
	if !expiryValid(p.Expiry, now) {
		problems = append(problems, "card expiry is invalid or in the past")
	}
	if !allDigits(p.CVV) || len(p.CVV) < 3 || len(p.CVV) > 4 {
		problems = append(problems, "cvv is invalid")
	}
	return problems
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func luhn(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// expiryValid accepts MM/YY and treats the card as usable through the last
// day of the named month.
func expiryValid(raw string, now time.Time) bool {
	parts := strings.Split(raw, "/")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return false
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil || month < 1 || month > 12 {
		return false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return false
	}
	endOfMonth := time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	return now.Before(endOfMonth)
}
