// Package main is the HiveCache sync and search client.
//
// It keeps a local copy of your bookmarks in SQLite plus a Bleve
// full-text index, kept fresh by replaying the server's action log.
//
// Usage:
//
//	hivecache-client login -server https://hive.example.com -email you@example.com
//	hivecache-client sync [-watch]
//	hivecache-client search [-domain go.dev] [-tag go-lang] [-public] <query>
//	hivecache-client status
//	hivecache-client logout
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	clientapi "github.com/bookmarkhive/hivecache/internal/client/api"
	clientcfg "github.com/bookmarkhive/hivecache/internal/client/config"
	"github.com/bookmarkhive/hivecache/internal/client/search"
	clientstore "github.com/bookmarkhive/hivecache/internal/client/store"
	clientsync "github.com/bookmarkhive/hivecache/internal/client/sync"
	"github.com/bookmarkhive/hivecache/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to the client config file")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	log := newLogger(*verbose)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "login":
		err = runLogin(ctx, cfg, log, args)
	case "sync":
		err = runSync(ctx, cfg, log, args)
	case "search":
		err = runSearch(ctx, cfg, log, args)
	case "status":
		err = runStatus(ctx, cfg, log)
	case "logout":
		err = runLogout(ctx, cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("command failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `HiveCache client

Usage:
  %s [-config path] [-v] <command> [arguments]

Commands:
  login    Authenticate against a HiveCache server and store credentials
  sync     Bring the local bookmark cache up to date (add -watch to keep syncing)
  search   Search the local bookmark index
  status   Show the local sync state
  logout   Revoke the session and forget stored credentials
`, os.Args[0])
}

func loadConfig(path string) (*clientcfg.Config, error) {
	if path == "" {
		var err error
		path, err = clientcfg.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return clientcfg.Load(path)
}

func newLogger(verbose bool) *logger.Logger {
	level := logger.ParseLevel("warn")
	if verbose {
		level = logger.ParseLevel("debug")
	}
	return logger.New(logger.Config{
		Writer: os.Stderr,
		Format: "pretty",
		Level:  level,
	})
}

// newClient builds the API client and wires token rotation back into the
// config file, so the refresh token survives between runs.
func newClient(cfg *clientcfg.Config, log *logger.Logger) *clientapi.Client {
	client := clientapi.New(clientapi.Options{
		BaseURL:      cfg.ServerURL,
		RefreshToken: cfg.Auth.RefreshToken,
		Logger:       log.Logger,
		Device: clientapi.DeviceInfo{
			Platform:      cfg.Device.Platform,
			ClientName:    cfg.Device.ClientName,
			ClientVersion: cfg.Device.ClientVersion,
			DeviceName:    cfg.Device.Name,
		},
	})
	client.OnTokens = func(_, refreshToken, sessionID string) {
		cfg.Auth.RefreshToken = refreshToken
		cfg.Auth.SessionID = sessionID
		if err := cfg.Save(); err != nil {
			log.Warn("failed to persist rotated tokens", "error", err)
		}
	}
	return client
}

// openLocal opens the cache database and the search index under DataDir.
func openLocal(cfg *clientcfg.Config, log *logger.Logger) (*clientstore.Store, *search.Index, func(), error) {
	cache, err := clientstore.Open(filepath.Join(cfg.DataDir, "cache.db"), log.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open cache: %w", err)
	}

	idx, err := search.Open(cfg.DataDir, log.Logger)
	if err != nil {
		cache.Close()
		return nil, nil, nil, fmt.Errorf("open search index: %w", err)
	}

	cleanup := func() {
		if err := idx.Close(); err != nil {
			log.Warn("failed to close search index", "error", err)
		}
		if err := cache.Close(); err != nil {
			log.Warn("failed to close cache", "error", err)
		}
	}
	return cache, idx, cleanup, nil
}

func runLogin(ctx context.Context, cfg *clientcfg.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	server := fs.String("server", cfg.ServerURL, "Server base URL")
	email := fs.String("email", cfg.Auth.Email, "Account email")
	password := fs.String("password", "", "Account password (omit to be prompted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *server == "" {
		return fmt.Errorf("no server URL; pass -server")
	}
	if *email == "" {
		return fmt.Errorf("no email; pass -email")
	}
	pass := *password
	if pass == "" {
		pass = os.Getenv("HIVECACHE_PASSWORD")
	}
	if pass == "" {
		fmt.Print("Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		pass = strings.TrimSpace(line)
	}

	cfg.ServerURL = strings.TrimRight(*server, "/")
	cfg.Auth.Email = *email

	client := newClient(cfg, log)

	resp, err := client.Login(ctx, *email, pass)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s (%s)\n", resp.User.DisplayName, resp.User.Email)
	fmt.Println("Run `sync` to build the local bookmark index.")
	return nil
}

func runSync(ctx context.Context, cfg *clientcfg.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	watch := fs.Bool("watch", false, "Keep syncing in the background until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client := newClient(cfg, log)
	if !client.Authenticated() {
		return fmt.Errorf("not logged in; run login first")
	}

	cache, idx, cleanup, err := openLocal(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	reconciler := clientsync.New(clientsync.Options{
		API:       client,
		Store:     cache,
		Index:     idx,
		Logger:    log.Logger,
		PageLimit: cfg.PageLimit,
	})

	if !*watch {
		if err := reconciler.Sync(ctx); err != nil {
			return err
		}
		return printStatus(ctx, cfg, reconciler)
	}

	runner := clientsync.NewRunner(reconciler, log.Logger, cfg.SyncInterval.Std())
	runner.Start(ctx)
	fmt.Printf("Syncing every %s. Press Ctrl-C to stop.\n", cfg.SyncInterval)

	<-ctx.Done()
	runner.Stop()
	fmt.Println("\nStopped.")
	return nil
}

func runSearch(ctx context.Context, cfg *clientcfg.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	domain := fs.String("domain", "", "Only bookmarks from this domain")
	tag := fs.String("tag", "", "Only bookmarks with this tag slug (repeatable via comma)")
	public := fs.Bool("public", false, "Only public bookmarks")
	limit := fs.Int("limit", 20, "Maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := strings.Join(fs.Args(), " ")
	if query == "" && *domain == "" && *tag == "" {
		return fmt.Errorf("nothing to search for; pass a query or a filter")
	}

	_, idx, cleanup, err := openLocal(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	params := search.Params{
		Query:      query,
		Domain:     *domain,
		PublicOnly: *public,
		Limit:      *limit,
	}
	if *tag != "" {
		params.Tags = strings.Split(*tag, ",")
	}

	result, err := idx.Search(ctx, params)
	if err != nil {
		return err
	}

	if len(result.Hits) == 0 {
		fmt.Println("No matches.")
		return nil
	}

	fmt.Printf("%d of %d matches (%dms)\n\n", len(result.Hits), result.Total, result.TookMs)
	for _, hit := range result.Hits {
		fmt.Printf("  %s\n  %s", hit.Title, hit.URL)
		if len(hit.Tags) > 0 {
			fmt.Printf("  [%s]", strings.Join(hit.Tags, ", "))
		}
		fmt.Println()
		fmt.Println()
	}
	return nil
}

func runStatus(ctx context.Context, cfg *clientcfg.Config, log *logger.Logger) error {
	cache, idx, cleanup, err := openLocal(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	reconciler := clientsync.New(clientsync.Options{
		API:    newClient(cfg, log),
		Store:  cache,
		Index:  idx,
		Logger: log.Logger,
	})
	return printStatus(ctx, cfg, reconciler)
}

func printStatus(ctx context.Context, cfg *clientcfg.Config, reconciler *clientsync.Reconciler) error {
	status, err := reconciler.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Server:       %s\n", orNone(cfg.ServerURL))
	fmt.Printf("Account:      %s\n", orNone(cfg.Auth.Email))
	fmt.Printf("Bookmarks:    %d cached, %d indexed\n", status.CachedCount, status.IndexedCount)
	fmt.Printf("Cursor:       %s\n", orNone(status.Cursor))
	fmt.Printf("Last synced:  %s\n", orNone(status.LastSyncedAt))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func runLogout(ctx context.Context, cfg *clientcfg.Config, log *logger.Logger) error {
	client := newClient(cfg, log)

	if client.Authenticated() && cfg.Auth.SessionID != "" {
		// Need a live access token to revoke the session.
		if err := client.Refresh(ctx); err != nil {
			log.Warn("could not refresh before logout, clearing local credentials anyway", "error", err)
		} else if err := client.Logout(ctx, cfg.Auth.SessionID); err != nil {
			log.Warn("server-side logout failed, clearing local credentials anyway", "error", err)
		}
	}

	cfg.Auth = clientcfg.Credentials{Email: cfg.Auth.Email}
	if err := cfg.Save(); err != nil {
		return err
	}

	fmt.Println("Logged out.")
	return nil
}
