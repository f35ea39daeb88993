package scoring

import (
	"strconv"
	"strings"
)

// SystemPrompt is the fixed scoring instruction.
const SystemPrompt = `You are a content analyst for a real-time social media art installation.

For each post below, provide:
1. relevance_score (0.0-1.0): How interesting/relevant is this to an audience interested in AI, tech, finance, geopolitics, science, crypto, and social commentary? Score 0 for spam, off-topic, or mundane. Score 1 for highly engaging, provocative, or newsworthy.
2. sentiment: One of: angry, sarcastic, hopeful, fearful, celebratory, melancholy, neutral

Respond ONLY with a JSON array matching the input order. No other text.`

// BuildUserPrompt numbers texts from 1, one per line.
func BuildUserPrompt(texts []string) string {
	var b strings.Builder
	b.WriteString("Posts:\n")
	for i, t := range texts {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(t)
	}
	return b.String()
}
