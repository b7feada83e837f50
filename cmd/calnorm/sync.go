package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"calnorm/internal/config"
	"calnorm/internal/engine"
	"calnorm/internal/fileutil"
	"calnorm/internal/ics"
	appLog "calnorm/internal/log"
	"calnorm/internal/prompt"
	"calnorm/internal/rules"
)

var (
	syncOnce       bool
	syncListen     string
	syncWatchRules bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch the configured feed on a schedule and write the normalized calendar",
	Long: `Fetches feed.url, applies the stored rules and writes feed.output, then
repeats on feed.schedule (cron syntax) until interrupted.

Without --listen unknown values cannot be answered: the run is skipped and
the previous output stays in place. With --listen the run waits for answers
in the browser. With --watch-rules an edit of the rule file starts an
extra run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Feed.URL == "" || cfg.Feed.Output == "" {
			return errors.New("feed.url and feed.output must be set in the config")
		}

		ctx := cmd.Context()

		p := prompt.Refuse
		if syncListen != "" {
			front := startWebFrontend(ctx, cfg, syncListen)
			defer front.stop()
			p = front.prompts
		}

		job := syncJob{
			feed:    cfg.Feed,
			fetcher: ics.NewFetcher(cfg.Feed.CacheDir, nil),
			norm:    newNormalizer(cfg),
			prompts: p,
		}

		if syncOnce {
			return job.run(ctx)
		}
		watch := ""
		if syncWatchRules {
			watch = cfg.RulesPath
		}
		return runScheduled(ctx, cfg.Feed.Schedule, job, watch)
	},
}

type syncJob struct {
	feed    config.FeedConfig
	fetcher *ics.Fetcher
	norm    normalizer
	prompts prompt.Prompter
}

func (j syncJob) run(ctx context.Context) error {
	res, err := j.fetcher.Fetch(ctx, j.feed.URL)
	if err != nil {
		return fmt.Errorf("fetch feed: %w", err)
	}

	out, _, err := j.norm.normalize(ctx, res.Body, j.prompts)
	if err != nil {
		return err
	}

	if err := fileutil.WriteFileAtomic(j.feed.Output, out, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	appLog.Info("sync completed", "output", j.feed.Output, "from_cache", res.FromCache)
	return nil
}

// runScheduled runs job immediately and then on every tick of schedule
// until ctx is canceled. When watchRules is set, a content change of that
// rule file triggers an extra run. Overlapping runs are skipped.
func runScheduled(ctx context.Context, schedule string, job syncJob, watchRules string) error {
	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger))

	tick := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		if err := job.run(ctx); err != nil {
			reportSyncError(err)
		}
	}))
	if _, err := c.AddJob(schedule, tick); err != nil {
		return fmt.Errorf("invalid feed.schedule %q: %w", schedule, err)
	}

	appLog.Info("sync scheduler starting", "schedule", schedule)
	tick.Run()
	c.Start()

	if watchRules != "" {
		go func() {
			err := rules.Watch(ctx, watchRules, 500*time.Millisecond, func() { go tick.Run() })
			if err != nil {
				appLog.Error("rule watcher stopped", err, "path", watchRules)
			}
		}()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("sync scheduler stopped")
	return nil
}

func reportSyncError(err error) {
	switch {
	case errors.Is(err, engine.ErrAborted) && errors.Is(err, prompt.ErrAbandoned):
		appLog.Warn("sync skipped: unknown values need answers; run `calnorm run` or start with --listen",
			"reason", err.Error())
	case errors.Is(err, engine.ErrMissingRule):
		appLog.Error("sync failed: rule missing after resolution; this is a bug", err)
	default:
		appLog.Error("sync failed", err)
	}
}

// cronLogger routes robfig/cron logging through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}

func init() {
	syncCmd.Flags().BoolVar(&syncOnce, "once", false, "Run a single sync and exit")
	syncCmd.Flags().StringVar(&syncListen, "listen", "", "Serve the web prompt on this address and wait for answers")
	syncCmd.Flags().BoolVar(&syncWatchRules, "watch-rules", false, "Run again when the rule file is edited")
	rootCmd.AddCommand(syncCmd)
}
