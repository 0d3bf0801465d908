package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// DefaultTopK is the result limit applied when the caller omits top_k.
	DefaultTopK = 5
	// MaxTopK bounds the result limit a caller may request.
	MaxTopK = 100
	// DefaultThreshold is the minimum similarity applied when the caller omits it.
	DefaultThreshold = 0.5
)

// Query is a single similarity search request. Construct via NewQuery.
type Query struct {
	Text      string
	TopK      int
	Threshold float64
}

// NewQuery validates and builds a search query.
// topK == 0 means the caller omitted it and selects DefaultTopK; a negative
// topK is rejected. threshold must already be resolved by the caller (0 is a
// legal threshold, so there is no in-band "not set" value).
func NewQuery(text string, topK int, threshold float64) (Query, error) {
	if strings.TrimSpace(text) == "" {
		return Query{}, fmt.Errorf("%w: text is required", ErrInvalidQuery)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	if topK < 0 || topK > MaxTopK {
		return Query{}, fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidQuery, MaxTopK)
	}
	if threshold < 0 || threshold > 1 {
		return Query{}, fmt.Errorf("%w: threshold must be in [0, 1]", ErrInvalidQuery)
	}
	return Query{Text: text, TopK: topK, Threshold: threshold}, nil
}

// CacheKey returns a deterministic composite key for this query.
// The text is length-prefixed so that a text containing separators can never
// collide with a different (text, top_k, threshold) combination.
func (q Query) CacheKey() string {
	return strconv.Itoa(len(q.Text)) + ":" + q.Text +
		":" + strconv.Itoa(q.TopK) +
		":" + strconv.FormatFloat(q.Threshold, 'g', -1, 64)
}

// Result is one ranked search hit.
type Result struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
