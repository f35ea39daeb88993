package scoring

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/lobstream/internal/domain/model"
)

// Result is the Tier 2 verdict for one post. A nil Relevance means the model
// returned nothing usable for that position.
type Result struct {
	Relevance *float64
	Sentiment string
}

var arrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// ParseResponse extracts the outermost JSON array from reply and returns
// exactly expected results, padding missing positions.
func ParseResponse(reply string, expected int) ([]Result, error) {
	match := arrayRe.FindString(reply)
	if match == "" {
		return nil, ErrNoArray
	}

	var raw any
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, ErrNotArray
	}

	out := make([]Result, expected)
	for i := 0; i < expected && i < len(items); i++ {
		obj, ok := items[i].(map[string]any)
		if !ok {
			continue
		}
		if v, ok := obj["relevance"].(float64); ok {
			out[i].Relevance = &v
		} else if v, ok := obj["relevance_score"].(float64); ok {
			out[i].Relevance = &v
		}
		if s, ok := obj["sentiment"].(string); ok {
			out[i].Sentiment = strings.ToLower(s)
		}
	}
	return out, nil
}

// NormalizeSentiment coerces unknown values to neutral.
func NormalizeSentiment(s string) model.Sentiment {
	v := model.Sentiment(strings.ToLower(strings.TrimSpace(s)))
	if v.Valid() {
		return v
	}
	return model.SentimentNeutral
}
