package xtream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/snapetech/xtreamcat/internal/catalog"
	"github.com/snapetech/xtreamcat/internal/config"
	"github.com/snapetech/xtreamcat/internal/m3u"
	"github.com/snapetech/xtreamcat/internal/metrics"
)

// Loader builds catalog snapshots: player_api first, get.php playlist as
// fallback. A Loader is stateless and safe for concurrent use.
type Loader struct {
	cfg    *config.Config
	client *Client
	log    logrus.FieldLogger
}

// NewLoader returns a loader using client for all upstream traffic.
func NewLoader(cfg *config.Config, client *Client, log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{cfg: cfg, client: client, log: log}
}

// Load fetches a full snapshot for the account. The primary JSON API is
// tried first (behind a short capability probe); on failure the playlist
// format is attempted once. When both fail the error is catalog.ErrUpstream
// and nothing may be cached.
func (l *Loader) Load(ctx context.Context, acct config.Account) (*catalog.Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.LoadDuration.Observe(time.Since(start).Seconds())
	}()
	log := l.log.WithField("backend", config.Redacted(acct.BaseURL))

	var primaryErr error
	if l.cfg.PreferM3U {
		primaryErr = fmt.Errorf("player_api disabled by config")
	} else if primaryErr = l.Probe(ctx, acct); primaryErr == nil {
		snap, err := l.loadPlayerAPI(ctx, acct)
		if err == nil {
			log.WithFields(logrus.Fields{
				"duration": time.Since(start).Round(time.Millisecond),
				"counts":   snap.Counts(),
			}).Info("catalog loaded via player_api")
			return snap, nil
		}
		primaryErr = err
	}
	log.WithError(primaryErr).Warn("player_api unavailable, trying playlist fallback")

	snap, err := l.loadPlaylist(ctx, acct)
	if err != nil {
		metrics.LoadFailures.Inc()
		return nil, fmt.Errorf("%w: primary: %v; fallback: %v", catalog.ErrUpstream, primaryErr, err)
	}
	log.WithFields(logrus.Fields{
		"duration": time.Since(start).Round(time.Millisecond),
		"counts":   snap.Counts(),
	}).Info("catalog loaded via playlist fallback")
	return snap, nil
}

// Probe checks that player_api answers with an Xtream auth document within
// the short probe timeout.
func (l *Loader) Probe(ctx context.Context, acct config.Account) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.ProbeTimeout)
	defer cancel()
	body, err := l.client.get(ctx, "auth", apiURL(acct, "", nil))
	if err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("auth response: %w", err)
	}
	if _, ok := raw["user_info"]; ok {
		return nil
	}
	if _, ok := raw["auth"]; ok {
		return nil
	}
	return fmt.Errorf("auth response lacks user_info")
}

// rawStream is the shape shared by get_live_streams and get_vod_streams,
// with string-or-number tolerance on the fields panels disagree about.
type rawStream struct {
	StreamID           interface{} `json:"stream_id"`
	Name               string      `json:"name"`
	StreamIcon         string      `json:"stream_icon"`
	CategoryID         interface{} `json:"category_id"`
	ContainerExtension string      `json:"container_extension"`
	Rating             interface{} `json:"rating"`
	Plot               string      `json:"plot"`
	Genre              string      `json:"genre"`
	ReleaseDate        string      `json:"releasedate"`
}

type rawSeries struct {
	SeriesID    interface{} `json:"series_id"`
	ID          interface{} `json:"id"`
	Name        string      `json:"name"`
	Cover       string      `json:"cover"`
	CategoryID  interface{} `json:"category_id"`
	Rating      interface{} `json:"rating"`
	Plot        string      `json:"plot"`
	Genre       string      `json:"genre"`
	ReleaseDate string      `json:"releaseDate"`
}

func (l *Loader) loadPlayerAPI(ctx context.Context, acct config.Account) (*catalog.Snapshot, error) {
	var (
		live, vod  []rawStream
		shows      []rawSeries
		liveCats   map[string]string
		vodCats    map[string]string
		seriesCats map[string]string
	)

	// Six independent fetches. Listing failures abort the JSON path;
	// category-table failures degrade to an empty lookup, since category
	// names are cosmetic.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := l.fetch(gctx, acct, "get_live_streams")
		if err != nil {
			return fmt.Errorf("live streams: %w", err)
		}
		if err := json.Unmarshal(body, &live); err != nil {
			return fmt.Errorf("live streams: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		body, err := l.fetch(gctx, acct, "get_vod_streams")
		if err != nil {
			return fmt.Errorf("vod streams: %w", err)
		}
		if err := json.Unmarshal(body, &vod); err != nil {
			return fmt.Errorf("vod streams: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		body, err := l.fetch(gctx, acct, "get_series")
		if err != nil {
			return fmt.Errorf("series: %w", err)
		}
		if shows, err = decodeSeriesList(body); err != nil {
			return fmt.Errorf("series: %w", err)
		}
		return nil
	})
	if l.cfg.IncludeCategories {
		g.Go(func() error {
			liveCats = l.fetchCategories(gctx, acct, "get_live_categories")
			return nil
		})
		g.Go(func() error {
			vodCats = l.fetchCategories(gctx, acct, "get_vod_categories")
			return nil
		})
		g.Go(func() error {
			seriesCats = l.fetchCategories(gctx, acct, "get_series_categories")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &catalog.Snapshot{
		Categories: make(map[catalog.Kind][]string),
		FetchedAt:  time.Now(),
	}
	for _, s := range live {
		sid := flexString(s.StreamID)
		if sid == "" {
			continue
		}
		item := catalog.Item{
			ID:          catalog.IDPrefixLive + sid,
			Kind:        catalog.KindChannel,
			Name:        strings.TrimSpace(s.Name),
			PlaybackURL: streamURL(acct, "live", sid, l.cfg.LiveExt),
			Poster:      s.StreamIcon,
		}
		if item.Name == "" {
			item.Name = "Channel " + sid
		}
		l.applyCategory(&item, liveCats, s.CategoryID)
		snap.Channels = append(snap.Channels, item)
	}
	for _, s := range vod {
		sid := flexString(s.StreamID)
		if sid == "" {
			continue
		}
		item := catalog.Item{
			ID:          catalog.IDPrefixVOD + sid,
			Kind:        catalog.KindMovie,
			Name:        strings.TrimSpace(s.Name),
			PlaybackURL: streamURL(acct, "movie", sid, sanitizeExt(s.ContainerExtension, l.cfg.VODExt)),
			Poster:      s.StreamIcon,
			Plot:        strings.TrimSpace(s.Plot),
			Genre:       strings.TrimSpace(s.Genre),
			Year:        parseYear(s.Name, s.ReleaseDate),
			Rating:      l.normRating(s.Rating),
		}
		l.applyCategory(&item, vodCats, s.CategoryID)
		snap.Movies = append(snap.Movies, item)
	}
	for _, s := range shows {
		sid := flexString(s.SeriesID)
		if sid == "" {
			sid = flexString(s.ID)
		}
		if sid == "" {
			continue
		}
		item := catalog.Item{
			ID:     catalog.IDPrefixSeries + sid,
			Kind:   catalog.KindSeries,
			Name:   strings.TrimSpace(s.Name),
			Poster: s.Cover,
			Plot:   strings.TrimSpace(s.Plot),
			Genre:  strings.TrimSpace(s.Genre),
			Year:   parseYear(s.Name, s.ReleaseDate),
			Rating: l.normRating(s.Rating),
		}
		l.applyCategory(&item, seriesCats, s.CategoryID)
		snap.Series = append(snap.Series, item)
	}
	collectCategories(snap)
	return snap, nil
}

func (l *Loader) fetch(ctx context.Context, acct config.Account, action string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.FetchTimeout)
	defer cancel()
	return l.client.get(ctx, action, apiURL(acct, action, nil))
}

// fetchCategories never fails the load: a broken category table degrades to
// raw labels, not an error.
func (l *Loader) fetchCategories(ctx context.Context, acct config.Account, action string) map[string]string {
	body, err := l.fetch(ctx, acct, action)
	if err != nil {
		l.log.WithError(err).WithField("action", action).Warn("category table unavailable")
		return nil
	}
	table, err := decodeCategoryTable(body)
	if err != nil {
		l.log.WithError(err).WithField("action", action).Warn("category table malformed")
		return nil
	}
	return table
}

func (l *Loader) applyCategory(item *catalog.Item, table map[string]string, categoryID interface{}) {
	raw := table[flexString(categoryID)]
	item.RawCategory = raw
	item.Category = catalog.NormalizeCategory(raw)
}

// decodeSeriesList tolerates both the array shape and the object shape
// keyed by series id. A body that parses as neither is an error, not an
// empty catalog: a panel error page must fail the fetch like a bad status.
func decodeSeriesList(body []byte) ([]rawSeries, error) {
	var list []rawSeries
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var keyed map[string]rawSeries
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, err
	}
	// Deterministic order for the object shape: sort by numeric id.
	list = make([]rawSeries, 0, len(keyed))
	for id, s := range keyed {
		if s.SeriesID == nil && s.ID == nil {
			s.SeriesID = id
		}
		list = append(list, s)
	}
	sortSeriesByID(list)
	return list, nil
}

func sortSeriesByID(list []rawSeries) {
	idOf := func(s rawSeries) (int, string) {
		sid := flexString(s.SeriesID)
		if sid == "" {
			sid = flexString(s.ID)
		}
		n, err := strconv.Atoi(sid)
		if err != nil {
			return 1 << 30, sid
		}
		return n, sid
	}
	sort.SliceStable(list, func(i, j int) bool {
		ni, si := idOf(list[i])
		nj, sj := idOf(list[j])
		if ni != nj {
			return ni < nj
		}
		return si < sj
	})
}

// loadPlaylist is the fallback path: fetch get.php and classify entries.
// Series here are best-effort title-pattern groupings; their episode index
// goes straight into the snapshot since there is no API to fetch later.
func (l *Loader) loadPlaylist(ctx context.Context, acct config.Account) (*catalog.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.FetchTimeout)
	defer cancel()
	plURL := acct.BaseURL + "/get.php?username=" + url.QueryEscape(acct.Username) +
		"&password=" + url.QueryEscape(acct.Password) + "&type=m3u_plus&output=ts"
	body, err := l.client.get(ctx, "get_php", plURL)
	if err != nil {
		return nil, err
	}
	entries, err := m3u.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("playlist empty")
	}
	channels, seriesGroups := m3u.Build(entries)

	snap := &catalog.Snapshot{
		Categories: make(map[catalog.Kind][]string),
		Episodes:   make(map[string][]catalog.Episode),
		FetchedAt:  time.Now(),
	}
	for _, ch := range channels {
		raw := ch.Group()
		snap.Channels = append(snap.Channels, catalog.Item{
			ID:          catalog.IDPrefixLive + shortHash(ch.URL),
			Kind:        catalog.KindChannel,
			Name:        ch.Title,
			PlaybackURL: ch.URL,
			Poster:      ch.Logo(),
			RawCategory: raw,
			Category:    catalog.NormalizeCategory(raw),
		})
	}
	for _, sg := range seriesGroups {
		seriesID := catalog.IDPrefixSeries + shortHash(sg.Show)
		item := catalog.Item{
			ID:          seriesID,
			Kind:        catalog.KindSeries,
			Name:        sg.Show,
			Poster:      sg.Logo,
			RawCategory: sg.Group,
			Category:    catalog.NormalizeCategory(sg.Group),
		}
		snap.Series = append(snap.Series, item)
		for _, ep := range sg.Episodes {
			snap.Episodes[seriesID] = append(snap.Episodes[seriesID], catalog.Episode{
				ID:          catalog.EpisodeID(seriesID, ep.Season, ep.Episode),
				Season:      ep.Season,
				Episode:     ep.Episode,
				Title:       ep.Title,
				PlaybackURL: ep.URL,
			})
		}
	}
	collectCategories(snap)
	return snap, nil
}

// collectCategories derives the per-kind vocabulary actually present, in
// first-seen order.
func collectCategories(snap *catalog.Snapshot) {
	for _, kind := range []catalog.Kind{catalog.KindChannel, catalog.KindMovie, catalog.KindSeries} {
		seen := make(map[string]bool)
		for _, item := range snap.Items(kind) {
			if item.Category == "" || seen[item.Category] {
				continue
			}
			seen[item.Category] = true
			snap.Categories[kind] = append(snap.Categories[kind], item.Category)
		}
	}
}

// streamURL synthesizes the playback URL for one stream id.
func streamURL(acct config.Account, segment, sid, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", acct.BaseURL, segment,
		url.PathEscape(acct.Username), url.PathEscape(acct.Password),
		url.PathEscape(sid), url.PathEscape(ext))
}

// sanitizeExt keeps a sane backend-supplied container extension, else the
// configured default.
func sanitizeExt(ext, fallback string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" || len(ext) > 5 {
		return fallback
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return fallback
		}
	}
	return ext
}

// parseYear extracts a release year from the structured date when present,
// else from a "(YYYY)" suffix in the raw name.
func parseYear(name, releaseDate string) int {
	if d := strings.TrimSpace(releaseDate); len(d) >= 4 {
		if y, err := strconv.Atoi(d[:4]); err == nil && y >= 1900 && y <= 2100 {
			return y
		}
	}
	n := strings.TrimSpace(name)
	if len(n) >= 6 && n[len(n)-1] == ')' {
		if i := strings.LastIndex(n, "("); i >= 0 {
			if y, err := strconv.Atoi(strings.TrimSpace(n[i+1 : len(n)-1])); err == nil && y >= 1900 && y <= 2100 {
				return y
			}
		}
	}
	return 0
}

// normRating renders a string-or-number rating field, mapping the "0" /
// "N/A" sentinels to absent when configured to.
func (l *Loader) normRating(v interface{}) string {
	s := flexString(v)
	if s == "" {
		return ""
	}
	if l.cfg.TreatZeroRatingAsAbsent {
		switch strings.ToLower(s) {
		case "0", "0.0", "n/a", "na":
			return ""
		}
	}
	return s
}

// shortHash is a stable 16-hex-digit id fragment for playlist entries,
// which carry no backend ids of their own.
func shortHash(s string) string {
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%016x", h.Sum64())
}
