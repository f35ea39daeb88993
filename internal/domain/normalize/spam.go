package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Reasons returned by Spam.
const (
	SpamBrackets  = "bracket_density"
	SpamKeyValue  = "key_value_density"
	SpamWallet    = "wallet_address"
	SpamCodeLike  = "code_punctuation"
	minSpamSample = 40
)

var (
	keyValueRe = regexp.MustCompile(`\b[A-Za-z_][\w.-]*\s*[=:]\s*["']?[\w.-]+`)
	walletRe   = regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b|\b(?:bc1|[13])[a-km-zA-HJ-NP-Z1-9]{25,39}\b|\b[1-9A-HJ-NP-Za-km-z]{43,44}\b`)
)

// Spam reports whether text looks like structured data or machine output
// rather than prose, and why.
func Spam(text string) (string, bool) {
	if walletRe.MatchString(text) {
		return SpamWallet, true
	}
	n := utf8.RuneCountInString(text)
	if n < minSpamSample {
		return "", false
	}

	var brackets, code int
	for _, r := range text {
		switch r {
		case '{', '}', '[', ']':
			brackets++
			code++
		case ';', '(', ')', '=', '<', '>', '$', '|', '&', '\\', '`':
			code++
		}
	}
	if brackets >= 6 && float64(brackets)/float64(n) > 0.05 {
		return SpamBrackets, true
	}

	words := len(strings.Fields(text))
	pairs := len(keyValueRe.FindAllStringIndex(text, -1))
	if pairs >= 4 && words > 0 && float64(pairs)/float64(words) > 0.3 {
		return SpamKeyValue, true
	}
	if float64(code)/float64(n) > 0.12 {
		return SpamCodeLike, true
	}
	return "", false
}
