package catalog

import (
	"reflect"
	"testing"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Channels: []Item{
			{ID: "live_1", Kind: KindChannel, Name: "Sky Sports", Category: "Sports"},
			{ID: "live_2", Kind: KindChannel, Name: "Breaking News", Category: "News"},
			{ID: "live_3", Kind: KindChannel, Name: "Спорт Клуб", Category: "Sports"},
		},
		Movies: []Item{
			{ID: "vod_10", Kind: KindMovie, Name: "Breaking Bad S01E01", Category: "Movies"},
			{ID: "vod_11", Kind: KindMovie, Name: "The Breakfast Club", Category: "Movies"},
			{ID: "vod_12", Kind: KindMovie, Name: "News About Breaking", Category: "Movies"},
		},
		Series: []Item{
			{ID: "series_20", Kind: KindSeries, Name: "Breaking Bad", Category: "Series"},
		},
	}
}

func names(items []Item) []string {
	out := make([]string, len(items))
	for i := range items {
		out[i] = items[i].Name
	}
	return out
}

func TestQuery_noFiltersPreservesBackendOrder(t *testing.T) {
	idx := NewIndex(testSnapshot())
	got := names(idx.Query(KindChannel, "", ""))
	want := []string{"Sky Sports", "Breaking News", "Спорт Клуб"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestQuery_categoryFilter(t *testing.T) {
	idx := NewIndex(testSnapshot())
	got := names(idx.Query(KindChannel, "Sports", ""))
	want := []string{"Sky Sports", "Спорт Клуб"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if all := idx.Query(KindChannel, CategoryAll, ""); len(all) != 3 {
		t.Fatalf("category %q should not filter, got %d items", CategoryAll, len(all))
	}
}

func TestQuery_ranking(t *testing.T) {
	idx := NewIndex(testSnapshot())

	got := names(idx.Query(KindMovie, "", "breaking bad"))
	// Prefix match outranks the token-overlap match; "The Breakfast Club"
	// stays out because token overlap needs whole-token containment and
	// "breakfast" does not contain "breaking".
	want := []string{"Breaking Bad S01E01", "News About Breaking"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("movie search: got %v, want %v", got, want)
	}

	got = names(idx.Query(KindSeries, "", "breaking bad"))
	if !reflect.DeepEqual(got, []string{"Breaking Bad"}) {
		t.Fatalf("series search: got %v", got)
	}
}

func TestQuery_deterministic(t *testing.T) {
	idx := NewIndex(testSnapshot())
	first := idx.Query(KindChannel, "", "breaking")
	for i := 0; i < 5; i++ {
		again := idx.Query(KindChannel, "", "breaking")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, names(first), names(again))
		}
	}
}

func TestQuery_transliteratedSearch(t *testing.T) {
	idx := NewIndex(testSnapshot())

	// Latin query against a Cyrillic name.
	got := names(idx.Query(KindChannel, "", "sport klub"))
	if len(got) == 0 || got[0] != "Спорт Клуб" {
		t.Fatalf("latin query: got %v", got)
	}

	// Cyrillic query against a Latin name.
	got = names(idx.Query(KindChannel, "", "спорт"))
	found := false
	for _, n := range got {
		if n == "Sky Sports" {
			found = true
		}
	}
	if !found {
		t.Fatalf("cyrillic query should reach %q, got %v", "Sky Sports", got)
	}
}

func TestQuery_noMatch(t *testing.T) {
	idx := NewIndex(testSnapshot())
	if got := idx.Query(KindMovie, "", "zzzzqq"); len(got) != 0 {
		t.Fatalf("expected no hits, got %v", names(got))
	}
}

func TestPage(t *testing.T) {
	items := []Item{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	cases := []struct {
		offset, limit int
		want          []string
	}{
		{0, 0, []string{"a", "b", "c", "d"}},
		{0, 2, []string{"a", "b"}},
		{2, 2, []string{"c", "d"}},
		{3, 5, []string{"d"}},
		{4, 2, nil},
		{-1, 1, []string{"a"}},
	}
	for _, c := range cases {
		got := Page(items, c.offset, c.limit)
		ids := make([]string, len(got))
		for i := range got {
			ids[i] = got[i].ID
		}
		if !reflect.DeepEqual(ids, c.want) && !(len(ids) == 0 && len(c.want) == 0) {
			t.Errorf("Page(offset=%d, limit=%d) = %v, want %v", c.offset, c.limit, ids, c.want)
		}
	}
}
