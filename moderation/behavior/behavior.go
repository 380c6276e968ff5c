// Per-author behavioural checks run before content is accepted: submission rate limits, daily spam volume and a trust level derived from reputation.
//
// Analysis never fails. When a backing source errors or times out, the safe default report is returned and the failure is logged.
package behavior

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

type TrustLevel string

const (
	TrustLow     TrustLevel = "low"
	TrustNormal  TrustLevel = "normal"
	TrustHigh    TrustLevel = "high"
	TrustTrusted TrustLevel = "trusted"
)

const (
	FlagPostingTooFast = "posting too frequently"
	FlagDailyVolume    = "excessive daily activity"
	FlagLowTrust       = "low trust account"
)

type Report struct {
	Activity
	ReputationScore int64      `json:"reputationScore"`
	IsSpamming      bool       `json:"isSpamming"`
	RateLimit       bool       `json:"rateLimit"`
	TrustLevel      TrustLevel `json:"trustLevel"`
	Flags           []string   `json:"flags"`
	// Set when the report is the safe default substituted for a failed analysis.
	Degraded bool `json:"degraded,omitempty"`
}

func SafeDefault() Report {
	return Report{
		TrustLevel: TrustNormal,
		Flags:      []string{},
		Degraded:   true,
	}
}

type Config struct {
	MaxRecentPosts    int64
	MaxRecentComments int64
	MaxDailyPosts     int64
	MaxDailyComments  int64

	// Reputation strictly below LowTrustBelow is low trust; strictly above TrustedAbove is trusted, else strictly above HighTrustAbove is high.
	LowTrustBelow  int64
	HighTrustAbove int64
	TrustedAbove   int64

	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRecentPosts:    5,
		MaxRecentComments: 10,
		MaxDailyPosts:     20,
		MaxDailyComments:  50,
		LowTrustBelow:     0,
		HighTrustAbove:    100,
		TrustedAbove:      500,
		Timeout:           2 * time.Second,
	}
}

// Order matters: a score above both thresholds is trusted, not high.
func (c Config) ClassifyTrust(score int64) TrustLevel {
	switch {
	case score < c.LowTrustBelow:
		return TrustLow
	case score > c.TrustedAbove:
		return TrustTrusted
	case score > c.HighTrustAbove:
		return TrustHigh
	default:
		return TrustNormal
	}
}

type Analyzer struct {
	Activity   ActivitySource
	Reputation ReputationSource
	Config     Config
	Logger     *slog.Logger
}

func NewAnalyzer(activity ActivitySource, reputation ReputationSource, config Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		Activity:   activity,
		Reputation: reputation,
		Config:     config,
		Logger:     logger.With("component", "behavior"),
	}
}

func (a *Analyzer) AnalyzeUserBehavior(ctx context.Context, userID int64) Report {
	start := time.Now()
	cfg := a.Config
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	var act Activity
	var score int64
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		act, err = a.Activity.Activity(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		score, err = a.Reputation.ReputationScore(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		a.Logger.Warn("behavior analysis failed, using safe default", "user", userID, "err", err)
		analysisCount.WithLabelValues("degraded").Inc()
		return SafeDefault()
	}

	out := Report{
		Activity:        act,
		ReputationScore: score,
		RateLimit:       act.RecentPosts > cfg.MaxRecentPosts || act.RecentComments > cfg.MaxRecentComments,
		IsSpamming:      act.DailyPosts > cfg.MaxDailyPosts || act.DailyComments > cfg.MaxDailyComments,
		TrustLevel:      cfg.ClassifyTrust(score),
		Flags:           []string{},
	}
	if out.RateLimit {
		out.Flags = append(out.Flags, FlagPostingTooFast)
	}
	if out.IsSpamming {
		out.Flags = append(out.Flags, FlagDailyVolume)
	}
	if out.TrustLevel == TrustLow {
		out.Flags = append(out.Flags, FlagLowTrust)
	}
	analysisCount.WithLabelValues(string(out.TrustLevel)).Inc()
	analysisDuration.Observe(time.Since(start).Seconds())
	return out
}
