package payment

import (
	"strconv"
	"strings"
)

const planPrefix = "credits_"

// MaxCredits bounds a single plan; larger values read as no credits.
const MaxCredits = 1_000_000

// MaxOrderAmount bounds create-order amounts in major units.
const MaxOrderAmount = 1_000_000_000

// ParseCredits maps a plan identifier to the credit amount it buys.
// "credits_100" and "100" both yield 100; anything else, including values
// above MaxCredits, yields 0.
func ParseCredits(plan string) int {
	plan = strings.TrimSpace(plan)
	plan = strings.TrimPrefix(plan, planPrefix)
	n, err := strconv.Atoi(plan)
	if err != nil || n < 0 || n > MaxCredits {
		return 0
	}
	return n
}

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "JPY": true,
	"KMF": true, "KRW": true, "MGA": true, "PYG": true, "RWF": true,
	"UGX": true, "VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
}

// MinorUnits converts an amount in major units to the provider's smallest unit.
func MinorUnits(amount int64, currency string) int64 {
	if zeroDecimal[strings.ToUpper(currency)] {
		return amount
	}
	return amount * 100
}
