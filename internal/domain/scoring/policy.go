package scoring

// Verdict is what happens to a scored post.
type Verdict int

const (
	// VerdictFallback passes the post through as Tier 1.
	VerdictFallback Verdict = iota
	// VerdictDiscard drops the post.
	VerdictDiscard
	// VerdictKeep writes the enriched post as Tier 2.
	VerdictKeep
)

func (v Verdict) String() string {
	switch v {
	case VerdictKeep:
		return "kept"
	case VerdictDiscard:
		return "discarded"
	default:
		return "fallback"
	}
}

// Policy gates posts on relevance.
type Policy struct {
	Threshold float64
	// KeepAtThreshold keeps a post scored exactly at Threshold.
	KeepAtThreshold bool
}

// DefaultPolicy keeps posts scoring 0.4 or more.
func DefaultPolicy() Policy {
	return Policy{Threshold: 0.4, KeepAtThreshold: true}
}

// Keep reports whether relevance clears the threshold.
func (p Policy) Keep(relevance float64) bool {
	if p.KeepAtThreshold {
		return relevance >= p.Threshold
	}
	return relevance > p.Threshold
}

// Decide maps one result onto a verdict.
func (p Policy) Decide(r Result) Verdict {
	switch {
	case r.Relevance == nil:
		return VerdictFallback
	case p.Keep(*r.Relevance):
		return VerdictKeep
	default:
		return VerdictDiscard
	}
}
