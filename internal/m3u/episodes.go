package m3u

import (
	"regexp"
	"strconv"
	"strings"
)

// episodeMatcher extracts (show, season, episode) from a free-text title.
// The pattern must expose three capture groups: show text, season, episode.
type episodeMatcher struct {
	name string
	re   *regexp.Regexp
}

// episodeMatchers is tried in order; the first match wins. Keeping the list
// declarative makes per-pattern test coverage tractable.
var episodeMatchers = []episodeMatcher{
	// "Breaking Bad S01E02", "show s1 e2"
	{"sxxeyy", regexp.MustCompile(`(?i)^(.*?)[\s._-]*s\s*(\d{1,2})\s*e\s*(\d{1,3})\b`)},
	// "Breaking Bad 1x02"
	{"nxm", regexp.MustCompile(`(?i)^(.*?)[\s._-]+(\d{1,2})x(\d{1,3})\b`)},
	// "Breaking Bad Season 1 Episode 2"
	{"words", regexp.MustCompile(`(?i)^(.*?)[\s._-]*season\s*(\d{1,2})\s*(?:episode|ep)\s*(\d{1,3})\b`)},
	// Russian "Сезон 1 Серия 2"
	{"ru", regexp.MustCompile(`(?i)^(.*?)[\s._-]*сезон\s*(\d{1,2})\s*серия\s*(\d{1,3})`)},
	// "Breaking Bad E05" / "Episode 5", season defaults to 1
	{"episode-only", regexp.MustCompile(`(?i)^(.*?)[\s._-]+(?:episode|ep|e)\s*()(\d{1,3})\b`)},
}

// MatchEpisode runs the ordered pattern list against a title. ok is false
// when no pattern matches. An empty season capture defaults to 1.
func MatchEpisode(title string) (show string, season, episode int, ok bool) {
	t := strings.TrimSpace(title)
	for _, m := range episodeMatchers {
		g := m.re.FindStringSubmatch(t)
		if g == nil {
			continue
		}
		show = cleanShow(g[1])
		season, _ = strconv.Atoi(g[2])
		episode, _ = strconv.Atoi(g[3])
		if season < 1 {
			season = 1
		}
		if episode < 1 {
			continue
		}
		if show == "" {
			show = t
		}
		return show, season, episode, true
	}
	return "", 0, 0, false
}

func cleanShow(s string) string {
	return strings.Trim(strings.TrimSpace(s), "-_.:|")
}

// SeriesGroup is one show reassembled from playlist entries.
type SeriesGroup struct {
	Show     string
	Logo     string
	Group    string
	Episodes []EpisodeEntry
}

// EpisodeEntry is one playlist entry classified as an episode.
type EpisodeEntry struct {
	Season  int
	Episode int
	Title   string
	URL     string
}

// Build splits playlist entries into plain channels and best-effort series
// groups. An entry joins a series when a title pattern matches, or when its
// group-title marks it as series content; in the latter case episodes that
// match no pattern get a per-series sequential episode number with season 1
// (counter fallback). Everything else is a channel. Order is preserved.
func Build(entries []Entry) (channels []Entry, series []SeriesGroup) {
	groupIdx := make(map[string]int)
	counters := make(map[string]int)
	for _, e := range entries {
		show, season, episode, ok := MatchEpisode(e.Title)
		if !ok {
			if !seriesGroupTitle(e.Group()) {
				channels = append(channels, e)
				continue
			}
			// Counter fallback: in a series group but no parseable
			// numbering.
			show = e.Title
			season = 1
			counters[show]++
			episode = counters[show]
		}
		i, exists := groupIdx[show]
		if !exists {
			i = len(series)
			groupIdx[show] = i
			series = append(series, SeriesGroup{Show: show, Logo: e.Logo(), Group: e.Group()})
		}
		series[i].Episodes = append(series[i].Episodes, EpisodeEntry{
			Season:  season,
			Episode: episode,
			Title:   e.Title,
			URL:     e.URL,
		})
	}
	return channels, series
}

func seriesGroupTitle(group string) bool {
	g := strings.ToLower(group)
	for _, marker := range []string{"series", "serie", "serije", "show", "сериал", "مسلسل"} {
		if strings.Contains(g, marker) {
			return true
		}
	}
	return false
}
