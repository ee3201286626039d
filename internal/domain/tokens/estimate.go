// Package tokens approximates the token cost of a text.
package tokens

import "unicode/utf8"

// CharCount returns the number of Unicode code points in text.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}

// Estimate returns ceil(chars / 1.5), floored at 1.
// Computed as (2*chars + 2) / 3 to stay in integer arithmetic.
func Estimate(text string) int {
	return FromChars(CharCount(text))
}

// FromChars applies the estimate to a known character count.
func FromChars(chars int) int {
	if chars <= 0 {
		return 1
	}
	n := (2*chars + 2) / 3
	if n < 1 {
		return 1
	}
	return n
}
