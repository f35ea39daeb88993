package normalize

import "unicode"

// latinRatio is the minimum share of Latin letters for English text.
const latinRatio = 0.7

// IsMostlyEnglish reports whether at least 70% of the letters in text,
// ignoring whitespace, digits, punctuation and symbols, are Latin script.
func IsMostlyEnglish(text string) bool {
	var letters, latin int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		letters++
		if isLatin(r) {
			latin++
		}
	}
	if letters == 0 {
		return false
	}
	return float64(latin)/float64(letters) >= latinRatio
}

func isLatin(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= 0x00C0 && r <= 0x024F)
}
