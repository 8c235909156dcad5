package model

import (
	"strconv"
	"strings"
)

// ParseCents converts a major-unit decimal string such as "19.99" to minor units.
// Digits past the second decimal place round half up. Unparseable input yields 0.
func ParseCents(s string) int64 {
	neg, whole, frac, ok := splitDecimal(s)
	if !ok {
		return 0
	}

	frac += "000"
	cents := whole*100 + int64(frac[0]-'0')*10 + int64(frac[1]-'0')
	if frac[2] >= '5' {
		cents++
	}
	if neg {
		return -cents
	}
	return cents
}

// ParseMinorUnits reads an amount already in minor units ("8900").
// A fractional part is dropped.
func ParseMinorUnits(s string) int64 {
	neg, whole, _, ok := splitDecimal(s)
	if !ok {
		return 0
	}
	if neg {
		return -whole
	}
	return whole
}

// splitDecimal splits "[-]digits[.digits]" without going through float64,
// so large amounts keep every digit.
func splitDecimal(s string) (neg bool, whole int64, frac string, ok bool) {
	s = strings.TrimSpace(s)
	if rest, found := strings.CutPrefix(s, "-"); found {
		neg, s = true, rest
	}
	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" && frac == "" {
		return false, 0, "", false
	}
	if !allDigits(intPart) || !allDigits(frac) {
		return false, 0, "", false
	}
	if intPart != "" {
		n, err := strconv.ParseInt(intPart, 10, 64)
		if err != nil {
			return false, 0, "", false
		}
		whole = n
	}
	return neg, whole, frac, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
