package retrieval

import (
	"math"
	"regexp"
	"strings"
)

var nonToken = regexp.MustCompile(`[^a-z0-9_]+`)

// Tokenize lowercases text and splits it on anything outside [a-z0-9_].
func Tokenize(text string) []string {
	fields := nonToken.Split(strings.ToLower(text), -1)
	tokens := fields[:0]
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// corpus holds per-document term frequencies and document frequencies.
type corpus struct {
	tf []map[string]int
	df map[string]int
}

func newCorpus(docs [][]string) *corpus {
	c := &corpus{tf: make([]map[string]int, len(docs)), df: make(map[string]int)}
	for i, tokens := range docs {
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		for tok := range tf {
			c.df[tok]++
		}
		c.tf[i] = tf
	}
	return c
}

func (c *corpus) idf(token string) float64 {
	n := float64(len(c.tf))
	return math.Log((1+n)/(1+float64(c.df[token]))) + 1
}

// similarity is the sum of tf*idf over query tokens, divided by the query length.
// Repeated query tokens count each time.
func (c *corpus) similarity(query []string, doc int) float64 {
	if len(query) == 0 || len(c.tf) == 0 || len(c.tf[doc]) == 0 {
		return 0
	}
	var score float64
	for _, tok := range query {
		if tf := c.tf[doc][tok]; tf > 0 {
			score += float64(tf) * c.idf(tok)
		}
	}
	return score / float64(len(query))
}
