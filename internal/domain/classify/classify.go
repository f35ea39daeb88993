// Package classify implements the Tier 1 keyword topic tagger.
package classify

import (
	"regexp"
	"strings"
)

// Result is the outcome of a successful classification.
type Result struct {
	Topics     []string
	Confidence float64
}

type compiledTopic struct {
	name       string
	confidence float64
	pattern    *regexp.Regexp
}

// Classifier matches text against an ordered topic table. It holds only
// compiled, read-only patterns and is safe for concurrent use.
type Classifier struct {
	topics []compiledTopic
}

// New compiles the given topics, or DefaultTopics when none are given.
// Topics without keywords are skipped.
func New(topics ...Topic) *Classifier {
	if len(topics) == 0 {
		topics = DefaultTopics()
	}
	c := &Classifier{topics: make([]compiledTopic, 0, len(topics))}
	for _, t := range topics {
		p := BuildPattern(t.Keywords)
		if p == nil {
			continue
		}
		c.topics = append(c.topics, compiledTopic{name: t.Name, confidence: t.Confidence, pattern: p})
	}
	return c
}

// BuildPattern compiles keywords into a case-insensitive whole-word
// alternation with every keyword quoted literally.
func BuildPattern(keywords []string) *regexp.Regexp {
	quoted := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			quoted = append(quoted, regexp.QuoteMeta(k))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Classify returns every matching topic in table order and the highest
// matching confidence. It reports false for empty text or no match.
func (c *Classifier) Classify(text string) (Result, bool) {
	if strings.TrimSpace(text) == "" {
		return Result{}, false
	}
	var res Result
	for _, t := range c.topics {
		if !t.pattern.MatchString(text) {
			continue
		}
		res.Topics = append(res.Topics, t.name)
		if t.confidence > res.Confidence {
			res.Confidence = t.confidence
		}
	}
	if len(res.Topics) == 0 {
		return Result{}, false
	}
	return res, true
}

// Topics lists the compiled topic names in order.
func (c *Classifier) Topics() []string {
	names := make([]string, len(c.topics))
	for i, t := range c.topics {
		names[i] = t.name
	}
	return names
}
