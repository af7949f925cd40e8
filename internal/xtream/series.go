package xtream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/snapetech/xtreamcat/internal/catalog"
	"github.com/snapetech/xtreamcat/internal/config"
)

// SeriesInfo fetches the episode list for one series via get_series_info.
// Episodes come back ordered by (season, episode). Calls are paced by the
// shared series rate limiter.
func (c *Client) SeriesInfo(ctx context.Context, acct config.Account, seriesID string, ext string) ([]catalog.Episode, error) {
	if err := c.seriesRate.Wait(ctx); err != nil {
		return nil, err
	}
	sid := strings.TrimPrefix(seriesID, catalog.IDPrefixSeries)
	body, err := c.get(ctx, "get_series_info", apiURL(acct, "get_series_info", url.Values{"series_id": {sid}}))
	if err != nil {
		return nil, err
	}
	var info struct {
		Episodes map[string][]struct {
			ID                 interface{} `json:"id"`
			EpisodeNum         interface{} `json:"episode_num"`
			Season             interface{} `json:"season"`
			Title              string      `json:"title"`
			ContainerExtension string      `json:"container_extension"`
			Info               struct {
				MovieImage  string `json:"movie_image"`
				ReleaseDate string `json:"releasedate"`
			} `json:"info"`
		} `json:"episodes"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("series info %s: %w", sid, err)
	}
	var out []catalog.Episode
	for seasonKey, eps := range info.Episodes {
		seasonNum, _ := strconv.Atoi(seasonKey)
		if seasonNum < 1 {
			seasonNum = 1
		}
		for i, ep := range eps {
			eid := flexString(ep.ID)
			if eid == "" {
				continue
			}
			epNum := flexInt(ep.EpisodeNum)
			if epNum < 1 {
				epNum = i + 1
			}
			season := flexInt(ep.Season)
			if season < 1 {
				season = seasonNum
			}
			out = append(out, catalog.Episode{
				ID:          catalog.EpisodeID(seriesID, season, epNum),
				Season:      season,
				Episode:     epNum,
				Title:       strings.TrimSpace(ep.Title),
				PlaybackURL: streamURL(acct, "series", eid, sanitizeExt(ep.ContainerExtension, ext)),
				Thumbnail:   ep.Info.MovieImage,
				ReleaseDate: ep.Info.ReleaseDate,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Season != out[j].Season {
			return out[i].Season < out[j].Season
		}
		return out[i].Episode < out[j].Episode
	})
	return out, nil
}

// EpisodeFallbackURL deterministically constructs an episode URL from the
// series id plus season/episode numbers. Last resort when structured
// episode data is unavailable; some panels accept this addressing form.
func EpisodeFallbackURL(acct config.Account, seriesID string, season, episode int, ext string) string {
	sid := strings.TrimPrefix(seriesID, catalog.IDPrefixSeries)
	name := fmt.Sprintf("%s_%d_%d", sid, season, episode)
	return streamURL(acct, "series", name, ext)
}
