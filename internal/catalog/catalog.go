// Package catalog defines the normalized content model shared by the loader,
// the search index and the stream resolver: items, episodes and the immutable
// snapshot that the cache hands out.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind is the content kind of a catalog item.
type Kind string

const (
	KindChannel Kind = "channel"
	KindMovie   Kind = "movie"
	KindSeries  Kind = "series"
)

// ID prefixes per kind. Prefixing keeps ids unique across kinds and lets the
// resolver infer the kind from an id alone.
const (
	IDPrefixLive   = "live_"
	IDPrefixVOD    = "vod_"
	IDPrefixSeries = "series_"
)

// Item is one listable unit: a live channel, a movie, or a series head.
// PlaybackURL is empty for series; series resolve per episode.
type Item struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Name        string `json:"name"`
	PlaybackURL string `json:"playback_url,omitempty"`
	Poster      string `json:"poster,omitempty"`
	RawCategory string `json:"raw_category,omitempty"`
	Category    string `json:"category,omitempty"`
	Plot        string `json:"plot,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	Rating      string `json:"rating,omitempty"`
}

// Episode is one episode of a series. Not listed in the top-level catalog;
// fetched on demand by the resolver.
type Episode struct {
	ID          string `json:"id"`
	Season      int    `json:"season"`
	Episode     int    `json:"episode"`
	Title       string `json:"title,omitempty"`
	PlaybackURL string `json:"playback_url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
}

// EpisodeID builds the composite id for one episode of a series.
// Format: <seriesID>:<season>:<episode>.
func EpisodeID(seriesID string, season, episode int) string {
	return seriesID + ":" + strconv.Itoa(season) + ":" + strconv.Itoa(episode)
}

// ParseEpisodeID splits a composite episode id back into its parts.
// Returns ok=false for a plain (non-episode) id.
func ParseEpisodeID(id string) (seriesID string, season, episode int, ok bool) {
	parts := strings.Split(id, ":")
	if len(parts) != 3 {
		return "", 0, 0, false
	}
	season, err1 := strconv.Atoi(parts[1])
	episode, err2 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || season < 0 || episode < 1 {
		return "", 0, 0, false
	}
	return parts[0], season, episode, true
}

// Snapshot is one fully loaded catalog as of a point in time. Snapshots are
// immutable after construction: the cache replaces them wholesale on refresh
// and never mutates one in place.
type Snapshot struct {
	Channels []Item `json:"channels"`
	Movies   []Item `json:"movies"`
	Series   []Item `json:"series"`

	// Categories holds the distinct normalized labels actually present per
	// kind, in first-seen order (stable for UI paging).
	Categories map[Kind][]string `json:"categories"`

	// Episodes is the per-series episode index for series whose episodes
	// were already known at load time (playlist mode). JSON-mode series
	// fetch episodes lazily through the resolver instead.
	Episodes map[string][]Episode `json:"episodes,omitempty"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Items returns the listing for one kind in stored (backend) order.
func (s *Snapshot) Items(kind Kind) []Item {
	switch kind {
	case KindChannel:
		return s.Channels
	case KindMovie:
		return s.Movies
	case KindSeries:
		return s.Series
	}
	return nil
}

// ItemByID looks up an item across all kinds. The kind is inferred from the
// id prefix so only one slice is scanned.
func (s *Snapshot) ItemByID(id string) (Item, bool) {
	var items []Item
	switch {
	case strings.HasPrefix(id, IDPrefixLive):
		items = s.Channels
	case strings.HasPrefix(id, IDPrefixVOD):
		items = s.Movies
	case strings.HasPrefix(id, IDPrefixSeries):
		items = s.Series
	default:
		return Item{}, false
	}
	for i := range items {
		if items[i].ID == id {
			return items[i], true
		}
	}
	return Item{}, false
}

// Counts returns channel/movie/series totals, for logging.
func (s *Snapshot) Counts() string {
	return fmt.Sprintf("channels=%d movies=%d series=%d", len(s.Channels), len(s.Movies), len(s.Series))
}

// ParseKind maps a client-facing kind string onto a Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "channel", "channels", "live", "tv":
		return KindChannel, true
	case "movie", "movies", "vod":
		return KindMovie, true
	case "series", "show", "shows":
		return KindSeries, true
	}
	return "", false
}
