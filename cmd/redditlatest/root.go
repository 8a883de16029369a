package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesprial/redditlatest/internal/config"
	"github.com/jamesprial/redditlatest/internal/fetcher"
	"github.com/jamesprial/redditlatest/internal/logging"
	"github.com/jamesprial/redditlatest/internal/metrics"
	"github.com/jamesprial/redditlatest/internal/session"
	"github.com/jamesprial/redditlatest/pkg/types"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

// errReported marks failures that were already logged at CRITICAL.
var errReported = errors.New("reported")

const (
	maxSeenPosts    = 1000
	shutdownTimeout = 5 * time.Second
)

type options struct {
	subreddit   string
	limit       int
	configFile  string
	envFile     string
	logLevel    string
	logFormat   string
	watch       time.Duration
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "redditlatest",
		Short: "List the newest posts of a subreddit",
		Long: "redditlatest authenticates against Reddit's OAuth API with script-app credentials and " +
			"prints the newest posts of a subreddit, waiting out rate limits as Reddit asks.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.subreddit, "subreddit", "s", config.DefaultSubreddit, "subreddit to read, several may be joined with +")
	flags.IntVarP(&o.limit, "limit", "n", config.DefaultLimit, "number of posts to list")
	flags.StringVar(&o.configFile, "config", "", "optional YAML configuration file")
	flags.StringVar(&o.envFile, "env-file", config.DefaultEnvFile, "dotenv file with REDDIT_* credentials, ignored when missing")
	flags.StringVar(&o.logLevel, "log-level", "info", "log level (debug, info, warn, error, critical)")
	flags.StringVar(&o.logFormat, "log-format", "text", "log format (text, json)")
	flags.DurationVar(&o.watch, "watch", 0, "poll for new posts at this interval, 0 lists once")
	flags.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "redditlatest %s (%s)\n", Version, Commit)
		},
	}
}

func run(cmd *cobra.Command, o *options) error {
	logger, err := logging.New(logging.Config{
		Level:  o.logLevel,
		Format: o.logFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	cfg, err := config.NewStore(
		config.WithEnvFile(o.envFile),
		config.WithConfigFile(o.configFile),
		config.WithLogger(logger),
	).Load()
	if err != nil {
		logging.Critical(cmd.Context(), logger, "cannot start without configuration", "error", err)
		return errReported
	}

	flags := cmd.Flags()
	if flags.Changed("subreddit") {
		cfg.Subreddit = o.subreddit
	}
	if flags.Changed("limit") {
		cfg.Limit = o.limit
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.New()
	if o.metricsAddr != "" {
		addr, shutdown, err := serveMetrics(o.metricsAddr, reg, logger)
		if err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		defer shutdown()
		logger.Info("serving metrics", "addr", addr)
	}

	sess, err := session.NewAuthenticator(
		session.WithSettings(cfg.Settings),
		session.WithLogger(logger),
	).Authenticate(ctx, cfg.Credentials)
	if err != nil {
		logging.Critical(ctx, logger, "cannot continue without a Reddit session", "error", err)
		return errReported
	}

	f := fetcher.New(fetcher.WithLogger(logger), fetcher.WithMetrics(reg))
	req := types.FetchRequest{Feed: cfg.Subreddit, Limit: cfg.Limit}
	out := cmd.OutOrStdout()

	if o.watch <= 0 {
		records := f.FetchLatest(ctx, sess, req)
		report(out, logger, req, records)
		return nil
	}
	return watch(ctx, out, logger, f, sess, req, o.watch)
}

func report(out io.Writer, logger *slog.Logger, req types.FetchRequest, records []types.PostRecord) {
	if len(records) == 0 {
		logger.Warn("no posts retrieved", "subreddit", req.Feed)
		return
	}
	logger.Info("latest posts", "subreddit", req.Feed, "count", len(records))
	printRecords(out, records)
}

func printRecords(out io.Writer, records []types.PostRecord) {
	for i, r := range records {
		fmt.Fprintf(out, "%d. %s (by %s) - Upvotes: %d\n", i+1, r.Title, r.Author, r.Score)
	}
}

// watch polls the feed until ctx is done, printing only posts it has not
// printed before, oldest first.
func watch(ctx context.Context, out io.Writer, logger *slog.Logger, f *fetcher.Fetcher, src fetcher.Source, req types.FetchRequest, interval time.Duration) error {
	logger.Info("watching for new posts", "subreddit", req.Feed, "interval", interval)

	seen := make(map[string]bool)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		records, err := f.Fetch(ctx, src, req)
		if err != nil && ctx.Err() == nil {
			logger.Warn("poll failed, will retry", "error", err)
		}

		fresh := make([]types.PostRecord, 0, len(records))
		for _, r := range records {
			if !seen[r.ID] {
				seen[r.ID] = true
				fresh = append(fresh, r)
			}
		}
		if len(fresh) > 0 {
			slices.Reverse(fresh)
			logger.Info("new posts", "subreddit", req.Feed, "count", len(fresh))
			printRecords(out, fresh)
		}

		// Forget everything but the current page once the set grows large.
		if len(seen) > maxSeenPosts {
			seen = make(map[string]bool, len(records))
			for _, r := range records {
				seen[r.ID] = true
			}
		}

		select {
		case <-ctx.Done():
			logger.Info("stopped watching", "subreddit", req.Feed)
			return nil
		case <-ticker.C:
		}
	}
}

// serveMetrics exposes reg on addr/metrics and returns the bound address and a
// shutdown func.
func serveMetrics(addr string, reg *metrics.Registry, logger *slog.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", reg.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	return ln.Addr().String(), shutdown, nil
}
