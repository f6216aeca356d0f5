package utils

import (
	"strings"
)

var ones = []string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen",
	"Sixteen", "Seventeen", "Eighteen", "Nineteen",
}

var tens = []string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy", "Eighty", "Ninety",
}

// NumberToWords spells n in the Indian system (thousand, lakh, crore).
// Zero is the empty string.
func NumberToWords(n int64) string {
	if n < 0 {
		return "Minus " + NumberToWords(-n)
	}
	switch {
	case n == 0:
		return ""
	case n < 20:
		return ones[n]
	case n < 100:
		return strings.TrimSpace(tens[n/10] + " " + ones[n%10])
	case n < 1000:
		return join(ones[n/100]+" Hundred", n%100)
	case n < 100000:
		return join(NumberToWords(n/1000)+" Thousand", n%1000)
	case n < 10000000:
		return join(NumberToWords(n/100000)+" Lakh", n%100000)
	default:
		return join(NumberToWords(n/10000000)+" Crore", n%10000000)
	}
}

func join(head string, rest int64) string {
	if rest == 0 {
		return head
	}
	return head + " " + NumberToWords(rest)
}

// WeightToWords is the slip wording for a weight in kilograms.
func WeightToWords(kg int64) string {
	switch kg {
	case 0:
		return "Zero Kilograms Only"
	case 1:
		return "One Kilogram Only"
	}
	return NumberToWords(kg) + " Kilograms Only"
}
