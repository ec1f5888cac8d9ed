package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

const (
	defaultMaxDistance    = 2
	defaultMaxSuggestions = 5
)

// Suggestion is an indexed term close to a query term.
type Suggestion struct {
	Term      string `json:"term"`
	Distance  int    `json:"distance"`
	Frequency int    `json:"frequency"`
}

// Correction is the spelling check of a query against the indexed template vocabulary.
type Correction struct {
	Query       string                  `json:"query"`
	Corrected   string                  `json:"corrected"`
	Misspelled  []string                `json:"misspelled"`
	Suggestions map[string][]Suggestion `json:"suggestions,omitempty"`
}

// HasCorrections reports whether any term was replaced.
func (c Correction) HasCorrections() bool {
	return len(c.Misspelled) > 0
}

// Suggest checks every query term against the index vocabulary and proposes the closest,
// most frequent known term for each unknown one.
func (c *Catalog) Suggest(ctx context.Context, query string) (Correction, error) {
	if err := ctx.Err(); err != nil {
		return Correction{}, err
	}
	terms, err := c.index.Terms()
	if err != nil {
		return Correction{}, fmt.Errorf("read vocabulary: %w", err)
	}
	return correct(query, terms, defaultMaxDistance, defaultMaxSuggestions), nil
}

// queryTerms splits a query on anything that is not a letter or digit, lowercased.
func queryTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func correct(query string, dict map[string]int, maxDistance, maxSuggestions int) Correction {
	out := Correction{Query: query, Misspelled: []string{}}
	terms := queryTerms(query)
	corrected := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, known := dict[term]; known {
			corrected = append(corrected, term)
			continue
		}
		sugg := suggest(term, dict, maxDistance, maxSuggestions)
		if len(sugg) == 0 {
			corrected = append(corrected, term)
			continue
		}
		if out.Suggestions == nil {
			out.Suggestions = make(map[string][]Suggestion)
		}
		out.Misspelled = append(out.Misspelled, term)
		out.Suggestions[term] = sugg
		corrected = append(corrected, sugg[0].Term)
	}
	out.Corrected = strings.Join(corrected, " ")
	return out
}

// suggest ranks dictionary terms within maxDistance edits of term by frequency over distance.
func suggest(term string, dict map[string]int, maxDistance, limit int) []Suggestion {
	n := len([]rune(term))
	var out []Suggestion
	for cand, freq := range dict {
		diff := len([]rune(cand)) - n
		if diff < 0 {
			diff = -diff
		}
		if diff > maxDistance {
			continue
		}
		if d := levenshtein(term, cand); d <= maxDistance {
			out = append(out, Suggestion{Term: cand, Distance: d, Frequency: freq})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		si := float64(out[i].Frequency) / float64(out[i].Distance+1)
		sj := float64(out[j].Frequency) / float64(out[j].Distance+1)
		if si != sj {
			return si > sj
		}
		return out[i].Term < out[j].Term
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// levenshtein is the rune-wise edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
