package search

import (
	"math"
	"sort"
	"strings"

	"sciencetopia/backend/internal/graph"
)

const defaultPageSize = 10

// Page is a normalized page request
type Page struct {
	Number int `json:"page"`
	Size   int `json:"page_size"`
}

// NewPage clamps size to [1, maxSize], defaulting an unset size to 10, and
// page to [1, MaxInt/size-1] so Skip plus one more page cannot overflow
func NewPage(page, size, maxSize int) Page {
	if size < 1 {
		size = defaultPageSize
	}
	if maxSize > 0 && size > maxSize {
		size = maxSize
	}
	if page < 1 {
		page = 1
	}
	if limit := math.MaxInt/size - 1; page > limit {
		page = limit
	}
	return Page{Number: page, Size: size}
}

// Skip is the number of results before this page
func (p Page) Skip() int {
	return (p.Number - 1) * p.Size
}

// luceneSpecial are the characters the Lucene query parser treats as syntax
const luceneSpecial = `\+-!():^[]"{}~*?|&/`

// luceneOperators are the bare words the parser reads as boolean operators
var luceneOperators = map[string]bool{"AND": true, "OR": true, "NOT": true}

// Escape makes user text safe to pass as a Lucene query. Operator keywords
// are lower-cased so they match as plain terms.
func Escape(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if luceneOperators[w] {
			words[i] = strings.ToLower(w)
		}
	}
	var b strings.Builder
	for _, r := range strings.Join(words, " ") {
		if strings.ContainsRune(luceneSpecial, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func resourceKey(r graph.Resource) string {
	if r.ID != "" {
		return r.ID
	}
	return r.Link
}

// Merge combines hit lists, summing the scores of hits on the same resource
func Merge(lists ...[]graph.ResourceHit) []graph.ResourceHit {
	index := make(map[string]int)
	var merged []graph.ResourceHit
	for _, list := range lists {
		for _, hit := range list {
			key := resourceKey(hit.Resource)
			if i, ok := index[key]; ok {
				merged[i].Score += hit.Score
				continue
			}
			index[key] = len(merged)
			merged = append(merged, hit)
		}
	}
	return merged
}

// Rank orders hits by score desc, then link and id asc
func Rank(hits []graph.ResourceHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Resource.Link != b.Resource.Link {
			return a.Resource.Link < b.Resource.Link
		}
		return a.Resource.ID < b.Resource.ID
	})
}

// Paginate returns the hits on page p and whether more follow
func Paginate[T any](hits []T, p Page) ([]T, bool) {
	start := p.Skip()
	if start < 0 || start >= len(hits) {
		return []T{}, false
	}
	end := start + p.Size
	if end < start || end >= len(hits) {
		return hits[start:], false
	}
	return hits[start:end], true
}
