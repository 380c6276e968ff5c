package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/forumkit/steward/moderation"
	"github.com/forumkit/steward/util/cliutil"

	"github.com/araddon/dateparse"
	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "steward",
		Usage:   "community content moderation and reputation service",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string: sqlite://, postgres:// or mongodb://",
			Value:   "sqlite://data/steward/steward.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for counters, flags and caching; in-process stores are used when empty",
			EnvVars: []string{"STEWARD_REDIS_URL"},
		},
		&cli.StringSliceFlag{
			Name:    "memcached-servers",
			Usage:   "memcached servers for the reputation cache; takes precedence over redis for caching",
			EnvVars: []string{"STEWARD_MEMCACHED_SERVERS"},
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "how long cached reputation scores stay valid",
			Value:   5 * time.Minute,
			EnvVars: []string{"STEWARD_CACHE_TTL"},
		},
		&cli.StringFlag{
			Name:    "rules-file",
			Usage:   "JSON file of named phrase sets overriding the built-in moderation rules",
			EnvVars: []string{"STEWARD_RULES_FILE"},
		},
		&cli.StringFlag{
			Name:    "behavior-source",
			Usage:   "where behavior analysis reads posting activity from: 'store' (rolling windows) or 'counters' (calendar buckets)",
			Value:   "store",
			EnvVars: []string{"STEWARD_BEHAVIOR_SOURCE"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "Slack incoming webhook for moderator notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.Float64Flag{
			Name:    "notify-rate-limit",
			Usage:   "max notifications delivered per second; excess notifications are dropped",
			Value:   10,
			EnvVars: []string{"STEWARD_NOTIFY_RATE_LIMIT"},
		},
		&cli.IntFlag{
			Name:    "report-threshold",
			Usage:   "number of reports after which content is flagged for review",
			Value:   int(moderation.DefaultConfig().ReportThreshold),
			EnvVars: []string{"STEWARD_REPORT_THRESHOLD"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"STEWARD_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: json or text",
			EnvVars: []string{"STEWARD_LOG_FMT", "LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		cleanupCmd,
		reportCmd,
		seedCmd,
	}

	return app.Run(args)
}

func configLogger(cctx *cli.Context) (*slog.Logger, error) {
	logger, err := cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// Common configuration shared by every subcommand which needs an engine.
func configServer(cctx *cli.Context, logger *slog.Logger) Config {
	modConfig := moderation.DefaultConfig()
	modConfig.ReportThreshold = int64(cctx.Int("report-threshold"))
	if cctx.IsSet("rejected-max-age") {
		modConfig.RejectedMaxAge = cctx.Duration("rejected-max-age")
	}
	return Config{
		Logger:           logger,
		RedisURL:         cctx.String("redis-url"),
		MemcachedServers: cctx.StringSlice("memcached-servers"),
		CacheTTL:         cctx.Duration("cache-ttl"),
		RulesFile:        cctx.String("rules-file"),
		BehaviorSource:   cctx.String("behavior-source"),
		SlackWebhookURL:  cctx.String("slack-webhook-url"),
		NotifyRateLimit:  cctx.Float64("notify-rate-limit"),
		Moderation:       modConfig,
	}
}

func openServer(cctx *cli.Context, config Config) (*Server, error) {
	st, err := cliutil.OpenStore(cctx.Context, cctx.String("database-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return nil, err
	}
	srv, err := NewServer(st, config)
	if err != nil {
		st.Close()
		return nil, err
	}
	return srv, nil
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the HTTP API and periodic maintenance",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3400",
			EnvVars: []string{"STEWARD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3401",
			EnvVars: []string{"STEWARD_METRICS_LISTEN"},
		},
		&cli.IntFlag{
			Name:    "request-rate-limit",
			Usage:   "max API requests per second for each caller; zero disables",
			Value:   20,
			EnvVars: []string{"STEWARD_REQUEST_RATE_LIMIT"},
		},
		&cli.DurationFlag{
			Name:    "cleanup-interval",
			Usage:   "how often rejected content is purged; zero disables",
			Value:   time.Hour,
			EnvVars: []string{"STEWARD_CLEANUP_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "rejected-max-age",
			Usage:   "age after which rejected content is purged",
			Value:   moderation.DefaultConfig().RejectedMaxAge,
			EnvVars: []string{"STEWARD_REJECTED_MAX_AGE"},
		},
		&cli.DurationFlag{
			Name:    "report-interval",
			Usage:   "how often a moderation summary is logged; zero disables",
			Value:   24 * time.Hour,
			EnvVars: []string{"STEWARD_REPORT_INTERVAL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}

		shutdownTracing, err := setupTracing(cctx.Context, "steward")
		if err != nil {
			return err
		}
		defer shutdownTracing()

		config := configServer(cctx, logger)
		config.Bind = cctx.String("bind")
		config.RequestRateLimit = int64(cctx.Int("request-rate-limit"))

		srv, err := openServer(cctx, config)
		if err != nil {
			return fmt.Errorf("failed to construct server: %v", err)
		}
		defer srv.Close()

		// prometheus HTTP endpoint: /metrics
		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		sweepCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			err := srv.RunSweeper(sweepCtx, SweeperConfig{
				CleanupInterval: cctx.Duration("cleanup-interval"),
				RejectedMaxAge:  config.Moderation.RejectedMaxAge,
				ReportInterval:  cctx.Duration("report-interval"),
			})
			if err != nil {
				slog.Error("sweeper stopped", "err", err)
			}
		}()

		return srv.RunAPI()
	},
}

var cleanupCmd = &cli.Command{
	Name:  "cleanup",
	Usage: "purge rejected content older than the given age, then exit",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "rejected-max-age",
			Value: moderation.DefaultConfig().RejectedMaxAge,
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		srv, err := openServer(cctx, configServer(cctx, logger))
		if err != nil {
			return err
		}
		defer srv.Close()

		n, err := srv.engine.CleanupRejected(cctx.Context, cctx.Duration("rejected-max-age"))
		if err != nil {
			return err
		}
		fmt.Printf("removed %d items\n", n)
		return nil
	},
}

var reportCmd = &cli.Command{
	Name:      "report",
	Usage:     "print moderation statistics for a time range as JSON",
	ArgsUsage: "[<start> [<end>]]",
	Description: "Start and end accept most common date formats. " +
		"Defaults to the 24 hours up to now.",
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		start, end, err := parseRange(cctx.Args().Get(0), cctx.Args().Get(1), time.Now())
		if err != nil {
			return err
		}
		srv, err := openServer(cctx, configServer(cctx, logger))
		if err != nil {
			return err
		}
		defer srv.Close()

		out, err := json.MarshalIndent(srv.reports.Generate(cctx.Context, start, end), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// Parses an optional report range; dates without a zone are UTC. Missing bounds default to the 24 hours ending now.
func parseRange(rawStart, rawEnd string, now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if rawEnd != "" {
		t, err := dateparse.ParseIn(rawEnd, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end: %w", err)
		}
		end = t.UTC()
	}
	start := end.Add(-24 * time.Hour)
	if rawStart != "" {
		t, err := dateparse.ParseIn(rawStart, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start: %w", err)
		}
		start = t.UTC()
	}
	return start, end, nil
}
