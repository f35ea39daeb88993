// Package normalize turns raw platform text into canonical post text.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// MaxTextLength caps canonical post text, in characters.
const MaxTextLength = 2000

// Result is the normalized text and timestamp of one raw item.
type Result struct {
	Text        string
	TimestampMs int64
}

// Normalize strips markup, decodes entities, collapses whitespace and
// truncates raw text. It reports false when the result is shorter than
// minLen characters.
func Normalize(rawText string, rawTimestamp any, minLen int) (Result, bool) {
	return NormalizePlain(StripHTML(rawText), rawTimestamp, minLen)
}

// NormalizePlain is Normalize for text whose markup was already removed.
// Angle brackets in it are kept as literal characters.
func NormalizePlain(text string, rawTimestamp any, minLen int) (Result, bool) {
	text = Truncate(CollapseWhitespace(text), MaxTextLength, "")
	if text == "" || utf8.RuneCountInString(text) < minLen {
		return Result{}, false
	}
	return Result{Text: text, TimestampMs: TimestampMs(rawTimestamp, time.Now())}, true
}

// Clean applies StripHTML and CollapseWhitespace.
func Clean(s string) string {
	return CollapseWhitespace(StripHTML(s))
}

// breakTags render as a single space so adjacent blocks do not run together.
var breakTags = map[string]bool{ //nolint:gochecknoglobals // lookup table
	"br": true, "p": true, "div": true, "li": true, "blockquote": true,
	"tr": true, "td": true, "h1": true, "h2": true, "h3": true, "hr": true,
}

// StripHTML removes every tag and returns the decoded text content.
// Line-breaking elements become a space; script and style bodies are dropped.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case tag == "script" || tag == "style":
				skip++
			case breakTags[tag]:
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case (tag == "script" || tag == "style") && skip > 0:
				skip--
			case breakTags[tag]:
				b.WriteByte(' ')
			}
		}
	}
}

// DecodeEntities decodes named and numeric character references.
func DecodeEntities(s string) string {
	return html.UnescapeString(s)
}

// CollapseWhitespace replaces whitespace runs with one space and trims.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to max characters and appends suffix when it was cut.
func Truncate(s string, max int, suffix string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + suffix
}

// TimestampMs interprets epoch milliseconds, numeric strings and RFC 3339
// strings. Anything else, including an unparsable string, yields now.
func TimestampMs(v any, now time.Time) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return int64(f)
		}
	case time.Time:
		if !t.IsZero() {
			return t.UnixMilli()
		}
	case string:
		if t == "" {
			break
		}
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UnixMilli()
		}
		if parsed, err := time.Parse("2006-01-02T15:04:05", t); err == nil {
			return parsed.UnixMilli()
		}
	}
	return now.UnixMilli()
}
