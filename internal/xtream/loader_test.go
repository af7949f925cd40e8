package xtream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/xtreamcat/internal/cache"
	"github.com/snapetech/xtreamcat/internal/catalog"
	"github.com/snapetech/xtreamcat/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		CacheTTL:                time.Minute,
		CacheMaxEntries:         4,
		ProbeTimeout:            2 * time.Second,
		FetchTimeout:            5 * time.Second,
		SeriesInfoRate:          100,
		LiveExt:                 "m3u8",
		VODExt:                  "mp4",
		SeriesExt:               "mp4",
		IncludeCategories:       true,
		TreatZeroRatingAsAbsent: true,
	}
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestLoader(t *testing.T, handler http.Handler) (*Loader, config.Account) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := testConfig()
	log := quietLogger()
	loader := NewLoader(cfg, NewClient(cfg, log), log)
	return loader, config.Account{BaseURL: srv.URL, Username: "u", Password: "p"}
}

func playerAPIHandler(t *testing.T) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("username") != "u" || q.Get("password") != "p" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("action") {
		case "":
			io.WriteString(w, `{"user_info":{"auth":1,"status":"Active"}}`)
		case "get_live_streams":
			// stream_id arrives as a number here, as a string elsewhere.
			io.WriteString(w, `[
				{"stream_id":1,"name":"Sky Sports","stream_icon":"http://logo/1.png","category_id":"5"},
				{"stream_id":"2","name":"  BBC One ","category_id":"99"},
				{"name":"broken, no id"}
			]`)
		case "get_vod_streams":
			io.WriteString(w, `[
				{"stream_id":"10","name":"Some Movie (2019)","container_extension":"mkv","category_id":8,"rating":0,"plot":"A movie.","genre":"Drama"},
				{"stream_id":11,"name":"Other Movie","container_extension":"../evil","rating":"7.9","releasedate":"2021-03-01"}
			]`)
		case "get_series":
			// Object shape keyed by series id, ids only in the keys.
			io.WriteString(w, `{
				"21":{"name":"Zeta Show","category_id":"7"},
				"20":{"name":"Breaking Bad","cover":"http://logo/bb.jpg","category_id":"7"}
			}`)
		case "get_live_categories":
			io.WriteString(w, `[{"category_id":5,"category_name":"Sports HD"}]`)
		case "get_vod_categories":
			// Object shape keyed by category id.
			io.WriteString(w, `{"8":{"category_name":"FILMES"}}`)
		case "get_series_categories":
			http.NotFound(w, r)
		default:
			t.Errorf("unexpected action %q", q.Get("action"))
			http.NotFound(w, r)
		}
	})
}

func TestLoad_playerAPI(t *testing.T) {
	loader, acct := newTestLoader(t, playerAPIHandler(t))
	snap, err := loader.Load(context.Background(), acct)
	if err != nil {
		t.Fatal(err)
	}

	if len(snap.Channels) != 2 {
		t.Fatalf("channels = %d, want 2 (id-less record skipped)", len(snap.Channels))
	}
	ch := snap.Channels[0]
	if ch.ID != "live_1" || ch.Name != "Sky Sports" || ch.Kind != catalog.KindChannel {
		t.Fatalf("channel = %+v", ch)
	}
	if want := acct.BaseURL + "/live/u/p/1.m3u8"; ch.PlaybackURL != want {
		t.Fatalf("channel URL = %q, want %q", ch.PlaybackURL, want)
	}
	if ch.RawCategory != "Sports HD" || ch.Category != "Sports" {
		t.Fatalf("channel category = %q / %q", ch.RawCategory, ch.Category)
	}
	if snap.Channels[1].Name != "BBC One" {
		t.Fatalf("name not trimmed: %q", snap.Channels[1].Name)
	}
	// Unknown category id degrades to no category, not an error.
	if snap.Channels[1].Category != "" {
		t.Fatalf("unknown category id mapped to %q", snap.Channels[1].Category)
	}

	if len(snap.Movies) != 2 {
		t.Fatalf("movies = %d", len(snap.Movies))
	}
	mv := snap.Movies[0]
	if mv.ID != "vod_10" || mv.Year != 2019 || mv.Plot != "A movie." || mv.Genre != "Drama" {
		t.Fatalf("movie = %+v", mv)
	}
	if want := acct.BaseURL + "/movie/u/p/10.mkv"; mv.PlaybackURL != want {
		t.Fatalf("movie URL = %q, want %q", mv.PlaybackURL, want)
	}
	if mv.Rating != "" {
		t.Fatalf("zero rating kept: %q", mv.Rating)
	}
	if mv.RawCategory != "FILMES" || mv.Category != "Movies" {
		t.Fatalf("movie category = %q / %q", mv.RawCategory, mv.Category)
	}
	mv2 := snap.Movies[1]
	if want := acct.BaseURL + "/movie/u/p/11.mp4"; mv2.PlaybackURL != want {
		t.Fatalf("bad extension not sanitized: %q", mv2.PlaybackURL)
	}
	if mv2.Year != 2021 || mv2.Rating != "7.9" {
		t.Fatalf("movie 2 = %+v", mv2)
	}

	// Object-shape series list, ordered by numeric id.
	if len(snap.Series) != 2 || snap.Series[0].ID != "series_20" || snap.Series[1].ID != "series_21" {
		t.Fatalf("series = %+v", snap.Series)
	}
	if snap.Series[0].Name != "Breaking Bad" || snap.Series[0].PlaybackURL != "" {
		t.Fatalf("series head = %+v", snap.Series[0])
	}
	// The get_series_categories 404 degrades; load still succeeds.
	if snap.Series[0].Category != "" {
		t.Fatalf("series category = %q", snap.Series[0].Category)
	}

	if got := snap.Categories[catalog.KindChannel]; len(got) != 1 || got[0] != "Sports" {
		t.Fatalf("channel categories = %v", got)
	}
	if got := snap.Categories[catalog.KindMovie]; len(got) != 1 || got[0] != "Movies" {
		t.Fatalf("movie categories = %v", got)
	}
}

const fallbackPlaylist = `#EXTM3U
#EXTINF:-1 tvg-logo="http://logo/sky.png" group-title="Sports",Sky Sports
http://origin/live/u/p/1.ts
#EXTINF:-1 group-title="Series",Breaking Bad S01E01
http://origin/series/u/p/100.mp4
#EXTINF:-1 group-title="Series",Breaking Bad S01E02
http://origin/series/u/p/101.mp4
`

func TestLoad_fallbackToPlaylist(t *testing.T) {
	loader, acct := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/player_api.php":
			// Permanent failure on the JSON API.
			http.NotFound(w, r)
		case "/get.php":
			q := r.URL.Query()
			if q.Get("type") != "m3u_plus" || q.Get("output") != "ts" {
				http.Error(w, "bad query", http.StatusBadRequest)
				return
			}
			io.WriteString(w, fallbackPlaylist)
		default:
			http.NotFound(w, r)
		}
	}))

	snap, err := loader.Load(context.Background(), acct)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Channels) != 1 || snap.Channels[0].Name != "Sky Sports" {
		t.Fatalf("channels = %+v", snap.Channels)
	}
	if snap.Channels[0].PlaybackURL != "http://origin/live/u/p/1.ts" {
		t.Fatalf("channel URL = %q", snap.Channels[0].PlaybackURL)
	}
	if snap.Channels[0].Category != "Sports" {
		t.Fatalf("channel category = %q", snap.Channels[0].Category)
	}

	if len(snap.Series) != 1 || snap.Series[0].Name != "Breaking Bad" {
		t.Fatalf("series = %+v", snap.Series)
	}
	sid := snap.Series[0].ID
	eps := snap.Episodes[sid]
	if len(eps) != 2 {
		t.Fatalf("episode index for %s = %+v", sid, eps)
	}
	if eps[0].ID != catalog.EpisodeID(sid, 1, 1) || eps[0].PlaybackURL != "http://origin/series/u/p/100.mp4" {
		t.Fatalf("episode 1 = %+v", eps[0])
	}
	if eps[1].Season != 1 || eps[1].Episode != 2 {
		t.Fatalf("episode 2 = %+v", eps[1])
	}
}

func TestLoad_malformedListingFallsBack(t *testing.T) {
	// Auth, live and VOD all answer, but get_series serves an HTML error
	// page with status 200. That must count as a failed required listing
	// and push the load onto the playlist, not produce an empty catalog.
	loader, acct := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/player_api.php":
			switch r.URL.Query().Get("action") {
			case "":
				io.WriteString(w, `{"user_info":{"auth":1}}`)
			case "get_live_streams", "get_vod_streams":
				io.WriteString(w, `[]`)
			case "get_series":
				io.WriteString(w, `<html>502 Bad Gateway</html>`)
			default:
				http.NotFound(w, r)
			}
		case "/get.php":
			io.WriteString(w, fallbackPlaylist)
		default:
			http.NotFound(w, r)
		}
	}))

	snap, err := loader.Load(context.Background(), acct)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Channels) != 1 || snap.Channels[0].PlaybackURL != "http://origin/live/u/p/1.ts" {
		t.Fatalf("snapshot did not come from the playlist: %+v", snap.Channels)
	}
	if len(snap.Series) != 1 || len(snap.Episodes[snap.Series[0].ID]) != 2 {
		t.Fatalf("playlist series missing: %+v", snap.Series)
	}
}

func TestLoad_bothSourcesFail(t *testing.T) {
	loader, acct := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := loader.Load(context.Background(), acct)
	if !errors.Is(err, catalog.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}

	// A failed load must leave the cache empty.
	c := cache.NewSnapshotCache(time.Minute, 4)
	_, err = c.GetOrLoad(context.Background(), cache.Key(acct.BaseURL, acct.Username), func(ctx context.Context) (*catalog.Snapshot, error) {
		return loader.Load(ctx, acct)
	})
	if !errors.Is(err, catalog.ErrUpstream) {
		t.Fatalf("cached load err = %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("cache holds %d entries after failed load", c.Len())
	}
}

func TestLoad_emptyPlaylistFails(t *testing.T) {
	loader, acct := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/get.php" {
			io.WriteString(w, "#EXTM3U\n")
			return
		}
		http.NotFound(w, r)
	}))
	if _, err := loader.Load(context.Background(), acct); !errors.Is(err, catalog.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
}

func TestProbe_rejectsNonXtream(t *testing.T) {
	loader, acct := newTestLoader(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"hello":"world"}`)
	}))
	if err := loader.Probe(context.Background(), acct); err == nil {
		t.Fatal("probe should fail without user_info")
	}
}

func TestSanitizeExt(t *testing.T) {
	cases := []struct{ in, fallback, want string }{
		{"mkv", "mp4", "mkv"},
		{".AVI", "mp4", "avi"},
		{"", "mp4", "mp4"},
		{"../evil", "mp4", "mp4"},
		{"toolong", "mp4", "mp4"},
		{"m3u8", "ts", "m3u8"},
	}
	for _, c := range cases {
		if got := sanitizeExt(c.in, c.fallback); got != c.want {
			t.Errorf("sanitizeExt(%q, %q) = %q, want %q", c.in, c.fallback, got, c.want)
		}
	}
}

func TestParseYear(t *testing.T) {
	cases := []struct {
		name, date string
		want       int
	}{
		{"Some Movie (2019)", "", 2019},
		{"Some Movie", "2021-03-01", 2021},
		{"Some Movie (1980)", "2021-03-01", 2021},
		{"Some Movie (3019)", "", 0},
		{"Some Movie", "", 0},
		{"(1999)", "", 1999},
	}
	for _, c := range cases {
		if got := parseYear(c.name, c.date); got != c.want {
			t.Errorf("parseYear(%q, %q) = %d, want %d", c.name, c.date, got, c.want)
		}
	}
}

func TestShortHash_stable(t *testing.T) {
	a := shortHash("Breaking Bad")
	if a != shortHash("Breaking Bad") {
		t.Fatal("hash must be stable")
	}
	if len(a) != 16 {
		t.Fatalf("hash length = %d", len(a))
	}
	if a == shortHash("Breaking Bad 2") {
		t.Fatal("distinct inputs should not collide here")
	}
}
