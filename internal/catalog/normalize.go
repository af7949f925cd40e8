package catalog

import "strings"

// categoryEntry binds one canonical label to its raw-label variants.
// The table is an ordered slice, not a map: the substring fallback in
// NormalizeCategory returns the first entry that hits, so enumeration order
// is part of the contract and must stay fixed.
type categoryEntry struct {
	canonical string
	keys      []string
}

// categoryTable covers the label variants providers actually emit: English
// plus the Spanish/French/German/Italian/Portuguese/Balkan/Russian/Arabic
// spellings seen across upstream panels. Lookups are against lower-cased
// trimmed input.
var categoryTable = []categoryEntry{
	{"Sports", []string{
		"sports", "sport", "deportes", "deporte", "esporte", "esportes",
		"football", "futbol", "fútbol", "soccer", "basketball", "tennis",
		"calcio", "fussball", "fußball", "спорт", "футбол", "رياضة",
	}},
	{"News", []string{
		"news", "noticias", "notícias", "nachrichten", "notizie", "actualites",
		"actualités", "info", "informacion", "vijesti", "vesti", "новости",
		"أخبار", "akhbar",
	}},
	{"Movies", []string{
		"movies", "movie", "cinema", "cine", "films", "film", "filmes",
		"peliculas", "películas", "kino", "filmovi", "фильмы", "кино",
		"أفلام", "aflam", "vod",
	}},
	{"Series", []string{
		"series", "serie", "tv shows", "tv show", "shows", "serien",
		"seriale", "serije", "telenovelas", "сериалы", "مسلسلات",
		"musalsalat", "dizi",
	}},
	{"Kids", []string{
		"kids", "children", "cartoon", "cartoons", "infantil", "enfants",
		"kinder", "bambini", "crtani", "deca", "djeca", "детские", "мультфильмы",
		"أطفال", "atfal", "anime",
	}},
	{"Music", []string{
		"music", "musica", "música", "musique", "musik", "muzika", "музыка",
		"موسيقى", "concerts", "karaoke",
	}},
	{"Documentary", []string{
		"documentary", "documentaries", "docu", "documentales", "documentaires",
		"dokumentation", "doku", "documentari", "dokumentarci", "документальные",
		"وثائقي",
	}},
	{"Religious", []string{
		"religious", "religion", "religione", "religioso", "islamic", "christian",
		"gospel", "دينية", "религия",
	}},
}

// NormalizeCategory maps a raw free-text category label onto the controlled
// vocabulary. Lookup order: exact key match, then substring containment in
// either direction (first table entry wins), then word-by-word title case of
// the raw label. Pure and deterministic; idempotent for labels already in
// canonical form.
func NormalizeCategory(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	for _, e := range categoryTable {
		for _, k := range e.keys {
			if key == k {
				return e.canonical
			}
		}
	}
	for _, e := range categoryTable {
		for _, k := range e.keys {
			// Single-character keys would match almost anything; the table
			// has none, but guard the containment test on length anyway.
			if len(k) < 3 {
				continue
			}
			if strings.Contains(key, k) || strings.Contains(k, key) {
				return e.canonical
			}
		}
	}
	return titleCase(raw)
}

// titleCase upper-cases the first rune of each whitespace-separated word and
// lower-cases the rest. ASCII-oriented on purpose: unrecognized labels pass
// through mostly as-is rather than being aggressively rewritten.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		if len(r) > 0 {
			r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		}
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
