// Package model contains domain models passed between layers.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Sentiment is the Tier 2 mood label.
type Sentiment string

const (
	SentimentAngry       Sentiment = "angry"
	SentimentSarcastic   Sentiment = "sarcastic"
	SentimentHopeful     Sentiment = "hopeful"
	SentimentFearful     Sentiment = "fearful"
	SentimentCelebratory Sentiment = "celebratory"
	SentimentMelancholy  Sentiment = "melancholy"
	SentimentNeutral     Sentiment = "neutral"
)

// Sentiments lists the accepted sentiment values in prompt order.
var Sentiments = []Sentiment{ //nolint:gochecknoglobals // fixed enum
	SentimentAngry, SentimentSarcastic, SentimentHopeful, SentimentFearful,
	SentimentCelebratory, SentimentMelancholy, SentimentNeutral,
}

// Valid reports whether s is one of the known sentiments.
func (s Sentiment) Valid() bool {
	for _, v := range Sentiments {
		if s == v {
			return true
		}
	}
	return false
}

// Tier records which classification stage produced the final post.
type Tier string

const (
	TierNone Tier = ""
	TierOne  Tier = "1"
	TierTwo  Tier = "2"
)

// TopicSeparator joins topics in the string-map representation.
const TopicSeparator = ","

// Log field keys.
const (
	FieldSource       = "source"
	FieldText         = "text"
	FieldAuthor       = "author"
	FieldTimestamp    = "ts"
	FieldTopics       = "topics"
	FieldConfidence   = "confidence"
	FieldRelevance    = "relevance"
	FieldSentiment    = "sentiment"
	FieldTier         = "ai_tier"
	FieldImageURL     = "imageUrl"
	FieldUpvotes      = "upvotes"
	FieldDownvotes    = "downvotes"
	FieldCommentCount = "commentCount"
	FieldCreatedAt    = "createdAt"
	FieldExternalID   = "moltbookId"
)

// DefaultAuthor is stored when a connector supplies no author.
const DefaultAuthor = "anonymous"

// Post is the canonical record every connector produces.
type Post struct {
	Source     string
	Text       string
	Author     string
	ImageURL   string
	Topics     []string
	Confidence float64

	// Relevance and Sentiment are set only by Tier 2.
	Relevance *float64
	Sentiment Sentiment
	Tier      Tier

	Upvotes      int
	Downvotes    int
	CommentCount int
	CreatedAt    *time.Time
	ExternalID   string

	// Timestamp is the ingestion time written as "ts".
	Timestamp time.Time

	// Community carries agent-network metadata used by persistence only.
	Community *Community
}

// Community describes the agent and sub-community a post came from.
type Community struct {
	AgentName      string
	AgentID        string
	SubmoltName    string
	SubmoltID      string
	SubmoltDisplay string
	Title          string
	Content        string
}

// LogEntry is one record of the event log.
type LogEntry struct {
	ID     string
	Fields map[string]string
}

// HasTopic reports whether any of want is among the post topics.
func (p Post) HasTopic(want ...string) bool {
	for _, t := range p.Topics {
		for _, w := range want {
			if t == w {
				return true
			}
		}
	}
	return false
}

// ToFields encodes the post into the event log string map.
func (p Post) ToFields() map[string]string {
	author := p.Author
	if author == "" {
		author = DefaultAuthor
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	f := map[string]string{
		FieldSource:     p.Source,
		FieldText:       p.Text,
		FieldAuthor:     author,
		FieldTimestamp:  strconv.FormatInt(ts.UnixMilli(), 10),
		FieldTopics:     strings.Join(p.Topics, TopicSeparator),
		FieldConfidence: strconv.FormatFloat(p.Confidence, 'f', -1, 64),
	}
	if p.Tier != TierNone {
		f[FieldTier] = string(p.Tier)
	}
	if p.Relevance != nil {
		f[FieldRelevance] = strconv.FormatFloat(*p.Relevance, 'f', -1, 64)
	}
	if p.Sentiment != "" {
		f[FieldSentiment] = string(p.Sentiment)
	}
	if p.ImageURL != "" {
		f[FieldImageURL] = p.ImageURL
	}
	if p.ExternalID != "" || p.Upvotes != 0 || p.Downvotes != 0 || p.CommentCount != 0 {
		f[FieldUpvotes] = strconv.Itoa(p.Upvotes)
		f[FieldDownvotes] = strconv.Itoa(p.Downvotes)
		f[FieldCommentCount] = strconv.Itoa(p.CommentCount)
	}
	if p.CreatedAt != nil {
		f[FieldCreatedAt] = p.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	if p.ExternalID != "" {
		f[FieldExternalID] = p.ExternalID
	}
	return f
}

// FromFields decodes a string map written by ToFields. Malformed numeric
// values decode to their zero value.
func FromFields(f map[string]string) Post {
	p := Post{
		Source:     f[FieldSource],
		Text:       f[FieldText],
		Author:     f[FieldAuthor],
		ImageURL:   f[FieldImageURL],
		Topics:     SplitTopics(f[FieldTopics]),
		Sentiment:  Sentiment(f[FieldSentiment]),
		Tier:       Tier(f[FieldTier]),
		ExternalID: f[FieldExternalID],
	}
	p.Confidence, _ = strconv.ParseFloat(f[FieldConfidence], 64)
	if v, ok := f[FieldRelevance]; ok && v != "" {
		if r, err := strconv.ParseFloat(v, 64); err == nil {
			p.Relevance = &r
		}
	}
	p.Upvotes, _ = strconv.Atoi(f[FieldUpvotes])
	p.Downvotes, _ = strconv.Atoi(f[FieldDownvotes])
	p.CommentCount, _ = strconv.Atoi(f[FieldCommentCount])
	if ms, err := strconv.ParseInt(f[FieldTimestamp], 10, 64); err == nil {
		p.Timestamp = time.UnixMilli(ms)
	}
	if v := f[FieldCreatedAt]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			p.CreatedAt = &t
		}
	}
	return p
}

// SplitTopics splits a joined topic string. An empty string yields an empty set.
func SplitTopics(s string) []string {
	out := []string{}
	for _, t := range strings.Split(s, TopicSeparator) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
