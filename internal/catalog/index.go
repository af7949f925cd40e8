package catalog

import (
	"sort"
	"strings"
)

// MaxSearchResults caps a single search response.
const MaxSearchResults = 100

// CategoryAll is the sentinel filter value meaning "no category filter".
const CategoryAll = "all"

// Search score tiers. Exact beats prefix beats substring beats token overlap;
// within a tier order falls back to name then id.
const (
	scoreExact     = 100
	scorePrefix    = 80
	scoreSubstring = 60
	scoreTokens    = 40
)

// Index is an in-memory lookup over one snapshot. Folded search keys are
// precomputed at build time so queries only do string scans. An Index is
// read-only after New and safe for concurrent use.
type Index struct {
	snap *Snapshot
	keys map[Kind][]itemKey
}

type itemKey struct {
	nameLower string
	nameFold  string
	catFold   string
	tokens    []string
}

// NewIndex builds the search index over snap.
func NewIndex(snap *Snapshot) *Index {
	idx := &Index{snap: snap, keys: make(map[Kind][]itemKey, 3)}
	for _, kind := range []Kind{KindChannel, KindMovie, KindSeries} {
		items := snap.Items(kind)
		keys := make([]itemKey, len(items))
		for i := range items {
			fold := FoldText(items[i].Name)
			keys[i] = itemKey{
				nameLower: strings.ToLower(items[i].Name),
				nameFold:  fold,
				catFold:   FoldText(items[i].Category + " " + items[i].RawCategory),
				tokens:    strings.Fields(fold),
			}
		}
		idx.keys[kind] = keys
	}
	return idx
}

// Snapshot returns the snapshot the index was built over.
func (x *Index) Snapshot() *Snapshot { return x.snap }

// Query returns items of kind, optionally restricted to a normalized
// category and/or matching a search text. Without filters the full listing
// comes back in backend order. With a search text, results are ordered by
// descending score with ties broken by name then id, capped at
// MaxSearchResults. Identical inputs against the same snapshot always
// produce the identical ordered result.
func (x *Index) Query(kind Kind, category, search string) []Item {
	items := x.snap.Items(kind)
	keys := x.keys[kind]

	filtered := items
	filteredKeys := keys
	if category != "" && !strings.EqualFold(category, CategoryAll) {
		filtered = nil
		filteredKeys = nil
		for i := range items {
			if items[i].Category == category {
				filtered = append(filtered, items[i])
				filteredKeys = append(filteredKeys, keys[i])
			}
		}
	}

	search = strings.TrimSpace(search)
	if search == "" {
		out := make([]Item, len(filtered))
		copy(out, filtered)
		return out
	}

	candidates := ExpandQuery(search)
	type scored struct {
		item  Item
		score int
	}
	var hits []scored
	for i := range filtered {
		best := 0
		for _, c := range candidates {
			if s := scoreItem(c, filteredKeys[i]); s > best {
				best = s
			}
		}
		if best > 0 {
			hits = append(hits, scored{filtered[i], best})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].item.Name != hits[j].item.Name {
			return hits[i].item.Name < hits[j].item.Name
		}
		return hits[i].item.ID < hits[j].item.ID
	})
	if len(hits) > MaxSearchResults {
		hits = hits[:MaxSearchResults]
	}
	out := make([]Item, len(hits))
	for i := range hits {
		out[i] = hits[i].item
	}
	return out
}

// Page slices a listing for offset-based paging. limit <= 0 means no limit.
func Page(items []Item, offset, limit int) []Item {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func scoreItem(query string, key itemKey) int {
	if query == key.nameLower || query == key.nameFold {
		return scoreExact
	}
	if strings.HasPrefix(key.nameFold, query) || strings.HasPrefix(key.nameLower, query) {
		return scorePrefix
	}
	if strings.Contains(key.nameFold, query) || strings.Contains(key.nameLower, query) || strings.Contains(key.catFold, query) {
		return scoreSubstring
	}
	if tokenOverlap(strings.Fields(query), key.tokens) {
		return scoreTokens
	}
	return 0
}

// tokenOverlap reports whether at least half the query tokens appear as a
// substring of some name token (or contain one).
func tokenOverlap(queryTokens, nameTokens []string) bool {
	if len(queryTokens) == 0 || len(nameTokens) == 0 {
		return false
	}
	matched := 0
	for _, q := range queryTokens {
		for _, n := range nameTokens {
			if strings.Contains(n, q) || strings.Contains(q, n) {
				matched++
				break
			}
		}
	}
	return matched*2 >= len(queryTokens)
}
