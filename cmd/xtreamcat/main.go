// Command xtreamcat: serve the catalog API, or run one-shot catalog
// operations from the shell.
//
//	run      Serve the JSON catalog API (cache + loader + resolver)
//	index    Load the catalog once and print a summary
//	search   Load the catalog and search it
//	resolve  Resolve a content or episode id to a stream URL
//	token    Mint an account token from url/user/pass
//	probe    Check whether player_api answers for the account
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/snapetech/xtreamcat/internal/cache"
	"github.com/snapetech/xtreamcat/internal/catalog"
	"github.com/snapetech/xtreamcat/internal/config"
	"github.com/snapetech/xtreamcat/internal/resolver"
	"github.com/snapetech/xtreamcat/internal/server"
	"github.com/snapetech/xtreamcat/internal/xtream"
)

func main() {
	_ = godotenv.Load()
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "run":
		cmdRun(cfg, log, os.Args[2:])
	case "index":
		cmdIndex(cfg, log, os.Args[2:])
	case "search":
		cmdSearch(cfg, log, os.Args[2:])
	case "resolve":
		cmdResolve(cfg, log, os.Args[2:])
	case "token":
		cmdToken(os.Args[2:])
	case "probe":
		cmdProbe(cfg, log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: xtreamcat {run|index|search|resolve|token|probe} [flags]")
}

// accountFlags registers the credential flags shared by one-shot commands.
// Token wins over url/user/pass; env XTREAMCAT_URL/USERNAME/PASSWORD are the
// fallback.
func accountFlags(fs *flag.FlagSet) (token, baseURL, user, pass *string) {
	token = fs.String("token", "", "Account token (overrides url/user/pass)")
	baseURL = fs.String("url", os.Getenv("XTREAMCAT_URL"), "Backend base URL")
	user = fs.String("user", os.Getenv("XTREAMCAT_USERNAME"), "Backend username")
	pass = fs.String("pass", os.Getenv("XTREAMCAT_PASSWORD"), "Backend password")
	return
}

func resolveAccount(token, baseURL, user, pass string) (config.Account, error) {
	if token != "" {
		return config.DecodeToken(token)
	}
	a := config.Account{BaseURL: baseURL, Username: user, Password: pass}
	if err := a.Validate(); err != nil {
		return config.Account{}, err
	}
	return a, nil
}

func newPipeline(cfg *config.Config, log *logrus.Logger) (*cache.SnapshotCache, *xtream.Loader, *resolver.Resolver) {
	client := xtream.NewClient(cfg, log)
	loader := xtream.NewLoader(cfg, client, log)
	snapshots := cache.NewSnapshotCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	episodes := cache.NewEpisodeCache(cfg.CacheTTL, cfg.CacheMaxEntries*8)
	res := resolver.New(cfg, client, episodes, log)
	return snapshots, loader, res
}

func cmdRun(cfg *config.Config, log *logrus.Logger, args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	addr := fs.String("addr", cfg.ListenAddr, "Listen address")
	fs.Parse(args)

	snapshots, loader, res := newPipeline(cfg, log)
	srv := &http.Server{
		Addr:              *addr,
		Handler:           server.New(cfg, snapshots, loader, res, log).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", *addr).Info("serving catalog API")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("serve")
	}
}

func loadOnce(cfg *config.Config, log *logrus.Logger, acct config.Account) (*catalog.Index, error) {
	snapshots, loader, _ := newPipeline(cfg, log)
	key := cache.Key(acct.BaseURL, acct.Username)
	return snapshots.GetOrLoad(context.Background(), key, func(ctx context.Context) (*catalog.Snapshot, error) {
		return loader.Load(ctx, acct)
	})
}

func cmdIndex(cfg *config.Config, log *logrus.Logger, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	token, baseURL, user, pass := accountFlags(fs)
	fs.Parse(args)
	acct, err := resolveAccount(*token, *baseURL, *user, *pass)
	if err != nil {
		log.WithError(err).Fatal("account")
	}
	idx, err := loadOnce(cfg, log, acct)
	if err != nil {
		log.WithError(err).Fatal("load")
	}
	snap := idx.Snapshot()
	fmt.Printf("loaded %s at %s\n", snap.Counts(), snap.FetchedAt.Format(time.RFC3339))
	for _, kind := range []catalog.Kind{catalog.KindChannel, catalog.KindMovie, catalog.KindSeries} {
		if cats := snap.Categories[kind]; len(cats) > 0 {
			fmt.Printf("%s categories: %v\n", kind, cats)
		}
	}
}

func cmdSearch(cfg *config.Config, log *logrus.Logger, args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	token, baseURL, user, pass := accountFlags(fs)
	kindFlag := fs.String("kind", "channel", "Kind: channel|movie|series")
	query := fs.String("q", "", "Search text")
	category := fs.String("category", "", "Normalized category filter")
	fs.Parse(args)
	acct, err := resolveAccount(*token, *baseURL, *user, *pass)
	if err != nil {
		log.WithError(err).Fatal("account")
	}
	kind, ok := catalog.ParseKind(*kindFlag)
	if !ok {
		log.Fatalf("unknown kind %q", *kindFlag)
	}
	idx, err := loadOnce(cfg, log, acct)
	if err != nil {
		log.WithError(err).Fatal("load")
	}
	for _, item := range idx.Query(kind, *category, *query) {
		fmt.Printf("%s\t%s\t%s\n", item.ID, item.Category, item.Name)
	}
}

func cmdResolve(cfg *config.Config, log *logrus.Logger, args []string) {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	token, baseURL, user, pass := accountFlags(fs)
	id := fs.String("id", "", "Content or episode id (e.g. vod_42 or series_7:1:2)")
	fs.Parse(args)
	acct, err := resolveAccount(*token, *baseURL, *user, *pass)
	if err != nil {
		log.WithError(err).Fatal("account")
	}
	if *id == "" {
		log.Fatal("-id required")
	}
	snapshots, loader, res := newPipeline(cfg, log)
	idx, err := snapshots.GetOrLoad(context.Background(), cache.Key(acct.BaseURL, acct.Username), func(ctx context.Context) (*catalog.Snapshot, error) {
		return loader.Load(ctx, acct)
	})
	if err != nil {
		log.WithError(err).Fatal("load")
	}
	streamURL, err := res.Resolve(context.Background(), acct, idx.Snapshot(), *id)
	if err != nil {
		log.WithError(err).Fatal("resolve")
	}
	fmt.Println(streamURL)
}

func cmdToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	baseURL := fs.String("url", "", "Backend base URL")
	user := fs.String("user", "", "Backend username")
	pass := fs.String("pass", "", "Backend password")
	fs.Parse(args)
	a := config.Account{BaseURL: *baseURL, Username: *user, Password: *pass}
	if err := a.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(config.EncodeToken(a))
}

func cmdProbe(cfg *config.Config, log *logrus.Logger, args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	token, baseURL, user, pass := accountFlags(fs)
	fs.Parse(args)
	acct, err := resolveAccount(*token, *baseURL, *user, *pass)
	if err != nil {
		log.WithError(err).Fatal("account")
	}
	client := xtream.NewClient(cfg, log)
	loader := xtream.NewLoader(cfg, client, log)
	start := time.Now()
	if err := loader.Probe(context.Background(), acct); err != nil {
		fmt.Printf("player_api: FAIL (%v) after %s\n", err, time.Since(start).Round(time.Millisecond))
		os.Exit(1)
	}
	fmt.Printf("player_api: OK in %s\n", time.Since(start).Round(time.Millisecond))
}
