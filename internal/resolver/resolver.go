// Package resolver maps content ids to playable stream URLs, fetching
// per-series episode listings on demand.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/snapetech/xtreamcat/internal/cache"
	"github.com/snapetech/xtreamcat/internal/catalog"
	"github.com/snapetech/xtreamcat/internal/config"
	"github.com/snapetech/xtreamcat/internal/xtream"
)

// Resolver resolves ids against a snapshot. Episode lists are cached per
// series under the same TTL discipline as the main catalog.
type Resolver struct {
	cfg      *config.Config
	client   *xtream.Client
	episodes *cache.EpisodeCache
	log      logrus.FieldLogger
}

// New returns a resolver sharing the loader's upstream client.
func New(cfg *config.Config, client *xtream.Client, episodes *cache.EpisodeCache, log logrus.FieldLogger) *Resolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{cfg: cfg, client: client, episodes: episodes, log: log}
}

// Resolve maps an item or episode id to its playback URL.
//
// Episode ids (series_<sid>:<season>:<episode>) consult the snapshot's own
// episode index first (playlist mode), then the lazily fetched and cached
// get_series_info listing; when that fetch fails outright the URL is
// constructed deterministically from the id parts. A listed series with no
// matching (season, episode) pair is catalog.ErrNotFound.
//
// Plain ids look up directly: channels and movies carry a precomputed URL;
// a bare series id has no direct stream and reports catalog.ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, acct config.Account, snap *catalog.Snapshot, id string) (string, error) {
	if seriesID, season, episode, ok := catalog.ParseEpisodeID(id); ok {
		return r.resolveEpisode(ctx, acct, snap, seriesID, season, episode)
	}
	item, ok := snap.ItemByID(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", catalog.ErrNotFound, id)
	}
	if item.Kind == catalog.KindSeries {
		return "", fmt.Errorf("%w: %s is a series, request an episode id", catalog.ErrNotFound, id)
	}
	if item.PlaybackURL == "" {
		return "", fmt.Errorf("%w: %s has no stream", catalog.ErrNotFound, id)
	}
	return item.PlaybackURL, nil
}

func (r *Resolver) resolveEpisode(ctx context.Context, acct config.Account, snap *catalog.Snapshot, seriesID string, season, episode int) (string, error) {
	if !strings.HasPrefix(seriesID, catalog.IDPrefixSeries) {
		return "", fmt.Errorf("%w: %s", catalog.ErrNotFound, seriesID)
	}
	if _, ok := snap.ItemByID(seriesID); !ok {
		return "", fmt.Errorf("%w: %s", catalog.ErrNotFound, seriesID)
	}

	// Playlist-mode snapshots already carry their episode index.
	if eps, ok := snap.Episodes[seriesID]; ok {
		if url := findEpisode(eps, season, episode); url != "" {
			return url, nil
		}
		return "", fmt.Errorf("%w: %s s%02de%02d", catalog.ErrNotFound, seriesID, season, episode)
	}

	key := cache.Key(acct.BaseURL, acct.Username) + "/" + seriesID
	eps, err := r.episodes.GetOrLoad(ctx, key, func(ctx context.Context) ([]catalog.Episode, error) {
		return r.client.SeriesInfo(ctx, acct, seriesID, r.cfg.SeriesExt)
	})
	if err != nil {
		// Structured data unavailable: fall back to the constructed URL
		// rather than failing playback outright.
		r.log.WithError(err).WithField("series", seriesID).Warn("episode listing unavailable, using constructed url")
		return xtream.EpisodeFallbackURL(acct, seriesID, season, episode, r.cfg.SeriesExt), nil
	}
	if url := findEpisode(eps, season, episode); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("%w: %s s%02de%02d", catalog.ErrNotFound, seriesID, season, episode)
}

func findEpisode(eps []catalog.Episode, season, episode int) string {
	for i := range eps {
		if eps[i].Season == season && eps[i].Episode == episode {
			return eps[i].PlaybackURL
		}
	}
	return ""
}
