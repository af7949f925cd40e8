package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticFold strips combining marks so "Fútbol" matches "futbol".
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldText lower-cases s, strips diacritics and transliterates Cyrillic to
// Latin. Item names and categories are folded once at index build; queries
// are folded per call. Folding both sides makes "Спорт Клуб" findable from
// "sport klub" and vice versa.
func FoldText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(diacriticFold, s); err == nil {
		s = folded
	}
	return cyrillicToLatin(s)
}

// ExpandQuery returns the candidate strings a search text is scored under:
// the folded text itself, a Latin→Cyrillic transliteration, and dictionary
// translations of known whole words. Order is fixed and duplicates are
// dropped, so scoring is deterministic.
func ExpandQuery(q string) []string {
	base := FoldText(q)
	if base == "" {
		return nil
	}
	out := []string{base}
	seen := map[string]bool{base: true}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	add(latinToCyrillic(base))
	add(translateWords(base))
	// Original script too: a Cyrillic query folds to Latin above, but its
	// dictionary translation only applies to the as-typed words.
	raw := strings.ToLower(strings.TrimSpace(q))
	add(raw)
	add(translateWords(raw))
	return out
}

func cyrillicToLatin(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if mapped, ok := cyrillicLatin[r]; ok {
			b.WriteString(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// latinToCyrillic applies the fixed substitution table, digraphs first so
// "sh" becomes "ш" rather than "сх".
func latinToCyrillic(s string) string {
	for _, d := range latinDigraphs {
		s = strings.ReplaceAll(s, d.latin, d.cyr)
	}
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if mapped, ok := latinCyrillic[r]; ok {
			b.WriteString(mapped)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// translateWords swaps known whole words using the bidirectional dictionary.
// Returns "" when nothing was translated.
func translateWords(s string) string {
	words := strings.Fields(s)
	changed := false
	for i, w := range words {
		if t, ok := wordDictionary[w]; ok {
			words[i] = t
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(words, " ")
}

var cyrillicLatin = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "j", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch", 'ш': "sh", 'щ': "sht",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
	'ј': "j", 'љ': "lj", 'њ': "nj", 'ђ': "dj", 'ћ': "c", 'џ': "dz",
}

var latinDigraphs = []struct{ latin, cyr string }{
	{"zh", "ж"}, {"ch", "ч"}, {"sh", "ш"}, {"kh", "х"},
	{"yu", "ю"}, {"ya", "я"}, {"ts", "ц"}, {"dj", "ђ"},
}

var latinCyrillic = map[rune]string{
	'a': "а", 'b': "б", 'c': "ц", 'd': "д", 'e': "е", 'f': "ф", 'g': "г",
	'h': "х", 'i': "и", 'j': "ј", 'k': "к", 'l': "л", 'm': "м", 'n': "н",
	'o': "о", 'p': "п", 'r': "р", 's': "с", 't': "т", 'u': "у", 'v': "в",
	'y': "ы", 'z': "з",
}

// wordDictionary translates common catalog terms in both directions. Keys
// and values are folded (lower-case Latin or Cyrillic).
var wordDictionary = map[string]string{
	"sport":    "спорт",
	"sports":   "спорт",
	"film":     "фильм",
	"movie":    "фильм",
	"series":   "сериал",
	"news":     "новости",
	"kids":     "детский",
	"music":    "музыка",
	"спорт":    "sport",
	"фильм":    "film",
	"фильмы":   "films",
	"сериал":   "series",
	"сериалы":  "series",
	"новости":  "news",
	"детский":  "kids",
	"детские":  "kids",
	"музыка":   "music",
	"мультики": "cartoons",
}
