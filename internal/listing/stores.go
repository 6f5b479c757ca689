package listing

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/iliyamo/asl-holdem-bff/internal/model"
)

// RankStores orders stores by how well their name or address matches term.
// Stores that match neither are dropped.  An empty term keeps the backend
// order.
func RankStores(stores []model.Store, term string) []model.Store {
	term = strings.TrimSpace(term)
	if term == "" {
		return stores
	}
	type scored struct {
		s     model.Store
		score int
	}
	var hits []scored
	for _, st := range stores {
		best := -1
		for _, field := range []string{st.Name, st.Address} {
			if field == "" {
				continue
			}
			if strings.Contains(strings.ToLower(field), strings.ToLower(term)) {
				best = 0
				break
			}
			ranks := fuzzy.RankFindNormalizedFold(term, []string{field})
			if len(ranks) > 0 && (best < 0 || ranks[0].Distance < best) {
				best = ranks[0].Distance
			}
		}
		if best >= 0 {
			hits = append(hits, scored{s: st, score: best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score < hits[j].score })
	out := make([]model.Store, len(hits))
	for i, h := range hits {
		out[i] = h.s
	}
	return out
}
