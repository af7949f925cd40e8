package xtream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/snapetech/xtreamcat/internal/config"
)

func TestSeriesInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "get_series_info" || q.Get("series_id") != "20" {
			t.Errorf("unexpected query %v", q)
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `{
			"info":{"name":"Breaking Bad"},
			"episodes":{
				"2":[{"id":"201","episode_num":1,"title":"Seven Thirty-Seven","container_extension":"mkv","season":2}],
				"1":[
					{"id":102,"episode_num":"2","title":"Cat's in the Bag"},
					{"id":"101","episode_num":1,"title":"Pilot","info":{"movie_image":"http://img/101.jpg","releasedate":"2008-01-20"}}
				]
			}
		}`)
	}))
	defer srv.Close()

	client := NewClient(testConfig(), quietLogger())
	acct := config.Account{BaseURL: srv.URL, Username: "u", Password: "p"}

	eps, err := client.SeriesInfo(context.Background(), acct, "series_20", "mp4")
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 3 {
		t.Fatalf("episodes = %d", len(eps))
	}

	// Sorted by (season, episode) regardless of map order.
	if eps[0].Season != 1 || eps[0].Episode != 1 || eps[0].Title != "Pilot" {
		t.Fatalf("first = %+v", eps[0])
	}
	if eps[0].ID != "series_20:1:1" {
		t.Fatalf("episode id = %q", eps[0].ID)
	}
	if want := srv.URL + "/series/u/p/101.mp4"; eps[0].PlaybackURL != want {
		t.Fatalf("episode URL = %q, want %q", eps[0].PlaybackURL, want)
	}
	if eps[0].Thumbnail != "http://img/101.jpg" || eps[0].ReleaseDate != "2008-01-20" {
		t.Fatalf("episode info = %+v", eps[0])
	}

	if eps[1].Season != 1 || eps[1].Episode != 2 {
		t.Fatalf("second = %+v", eps[1])
	}
	if eps[2].Season != 2 || eps[2].Episode != 1 {
		t.Fatalf("third = %+v", eps[2])
	}
	// Per-episode container extension wins over the default.
	if want := srv.URL + "/series/u/p/201.mkv"; eps[2].PlaybackURL != want {
		t.Fatalf("third URL = %q, want %q", eps[2].PlaybackURL, want)
	}
}

func TestEpisodeFallbackURL(t *testing.T) {
	acct := config.Account{BaseURL: "http://host:8080", Username: "u", Password: "p"}
	got := EpisodeFallbackURL(acct, "series_20", 1, 9, "mp4")
	if want := "http://host:8080/series/u/p/20_1_9.mp4"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
