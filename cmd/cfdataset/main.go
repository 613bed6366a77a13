package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/probsolve/cfdataset/internal/catalog"
	"github.com/probsolve/cfdataset/internal/codeforces"
	"github.com/probsolve/cfdataset/internal/config"
	"github.com/probsolve/cfdataset/internal/dataset"
	"github.com/probsolve/cfdataset/internal/features"
	"github.com/probsolve/cfdataset/internal/logger"
	"github.com/probsolve/cfdataset/internal/metrics"
	"github.com/probsolve/cfdataset/internal/models"
	"github.com/probsolve/cfdataset/internal/notify"
	"github.com/probsolve/cfdataset/internal/sampler"
	"github.com/probsolve/cfdataset/internal/stats"
	"github.com/probsolve/cfdataset/internal/storage"
)

var (
	configPath  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	stageList   = flag.String("stages", "build", "Comma-separated pipeline stages: contests,problems,stats,results,handles,ratings,build")
	chunkOffset = flag.Int("chunk", 0, "Chunk index to resume dataset assembly from")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	client := codeforces.NewClient(
		cfg.Codeforces.BaseURL,
		cfg.Codeforces.Timeout,
		codeforces.ClientConfig{
			SleepInterval:    cfg.Codeforces.SleepInterval,
			MaxRetries:       cfg.Codeforces.MaxRetries,
			RetryDelayBase:   cfg.Codeforces.RetryDelayBase,
			StandingsTimeout: cfg.Codeforces.StandingsTimeout,
		},
	)

	var notifier *notify.Client
	if cfg.Telegram.Enabled {
		notifier, err = notify.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if cfg.Metrics.Enabled {
		errCh := metrics.Serve(ctx, cfg.Metrics.ListenAddr)
		go func() {
			if err := <-errCh; err != nil {
				logger.Error("Metrics listener failed: %v", err)
			}
		}()
		logger.Info("Metrics exposed on %s", cfg.Metrics.ListenAddr)
	}

	p := &pipeline{cfg: cfg, store: store, client: client, notifier: notifier}

	for _, stage := range strings.Split(*stageList, ",") {
		stage = strings.TrimSpace(stage)
		if stage == "" {
			continue
		}
		logger.Info("Running stage %s", stage)
		start := time.Now()
		if err := p.run(ctx, stage); err != nil {
			if notifier != nil {
				if sendErr := notifier.SendError(stage, err); sendErr != nil {
					logger.Warn("Failed to send error notification: %v", sendErr)
				}
			}
			logger.Fatal("Stage %s failed: %v", stage, err)
		}
		logger.Info("Stage %s completed in %v", stage, time.Since(start))
	}
}

type pipeline struct {
	cfg      *config.Config
	store    *storage.Storage
	client   *codeforces.Client
	notifier *notify.Client
}

func (p *pipeline) run(ctx context.Context, stage string) error {
	switch stage {
	case "contests":
		return p.ingestContests(ctx)
	case "problems":
		return p.ingestProblems(ctx)
	case "stats":
		return p.ingestStatistics(ctx)
	case "results":
		return p.ingestResults(ctx)
	case "handles":
		return p.sampleHandles(ctx)
	case "ratings":
		return p.ingestRatings(ctx)
	case "build":
		return p.buildDataset(ctx)
	default:
		return fmt.Errorf("unknown stage: %s", stage)
	}
}

// ingestContests stores rated contests within the configured date range.
func (p *pipeline) ingestContests(ctx context.Context) error {
	minDate, _ := time.Parse("2006-01-02", p.cfg.Sampling.MinDate)
	maxDate, _ := time.Parse("2006-01-02", p.cfg.Sampling.MaxDate)

	list, err := p.client.ContestList(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch contest list: %w", err)
	}

	var contests []models.Contest
	for _, c := range list {
		if c.Phase == "BEFORE" {
			continue
		}
		start := time.Unix(c.StartTimeSeconds, 0)
		if start.Before(minDate) || start.After(maxDate) {
			continue
		}
		contests = append(contests, models.Contest{
			ID:           c.ID,
			Name:         c.Name,
			DivisionType: catalog.DivisionType(c.Name),
			StartTime:    start,
		})
	}
	if err := p.store.UpsertContests(contests); err != nil {
		return err
	}
	logger.Info("Stored %d contests", len(contests))
	return nil
}

// ingestProblems stores problem metadata for every stored contest, with
// one retry pass over failures.
func (p *pipeline) ingestProblems(ctx context.Context) error {
	contests, err := p.store.Contests()
	if err != nil {
		return err
	}

	fetch := func(ids []int) (failed []int, err error) {
		for _, cid := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			st, err := p.client.ContestProblems(ctx, cid)
			if err != nil {
				logger.Warn("Problem fetch failed for contest %d: %v", cid, err)
				failed = append(failed, cid)
				continue
			}
			metas := catalog.ProblemMetas(cid, st.Contest.Name, st.Problems)
			if len(metas) == 0 {
				logger.Warn("Contest %d has no rated problems yet", cid)
				failed = append(failed, cid)
				continue
			}
			if err := p.store.UpsertProblems(metas); err != nil {
				return nil, err
			}
		}
		return failed, nil
	}

	ids := make([]int, 0, len(contests))
	for _, c := range contests {
		ids = append(ids, c.ID)
	}
	failed, err := fetch(ids)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		logger.Info("Retrying %d failed contests", len(failed))
		if failed, err = fetch(failed); err != nil {
			return err
		}
	}
	logger.Info("Problem ingestion done (%d contests unresolved)", len(failed))
	return nil
}

// ingestStatistics aggregates and stores per-contest rating statistics.
func (p *pipeline) ingestStatistics(ctx context.Context) error {
	contests, err := p.store.Contests()
	if err != nil {
		return err
	}

	fetch := func(ids []int) (failed []int, err error) {
		for _, cid := range ids {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			changes, err := p.client.ContestRatingChanges(ctx, cid)
			if err != nil || len(changes) == 0 {
				logger.Warn("Rating changes unavailable for contest %d: %v", cid, err)
				failed = append(failed, cid)
				continue
			}
			if err := p.store.UpsertContestStatistic(stats.FromRatingChanges(cid, changes)); err != nil {
				return nil, err
			}
		}
		return failed, nil
	}

	ids := make([]int, 0, len(contests))
	for _, c := range contests {
		ids = append(ids, c.ID)
	}
	failed, err := fetch(ids)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		logger.Info("Retrying %d failed contests", len(failed))
		if failed, err = fetch(failed); err != nil {
			return err
		}
	}
	logger.Info("Statistics ingestion done (%d contests unresolved)", len(failed))
	return nil
}

// ingestResults stores per-user problem outcomes from official standings.
func (p *pipeline) ingestResults(ctx context.Context) error {
	contests, err := p.store.Contests()
	if err != nil {
		return err
	}

	for _, c := range contests {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := p.client.ContestStandings(ctx, c.ID)
		if err != nil {
			logger.Warn("Standings unavailable for contest %d: %v", c.ID, err)
			continue
		}
		var outcomes []models.SubmissionOutcome
		for i := range st.Rows {
			row := &st.Rows[i]
			handle := row.Handle()
			if handle == "" {
				continue
			}
			for idx, res := range row.ProblemResults {
				if idx >= len(st.Problems) {
					break
				}
				verdict := 0
				if res.Points > 0 {
					verdict = 1
				}
				outcomes = append(outcomes, models.SubmissionOutcome{
					Handle:          handle,
					ContestID:       c.ID,
					ProblemIndex:    idx,
					ProblemIndexRaw: st.Problems[idx].Index,
					Verdict:         verdict,
				})
			}
		}
		if err := p.store.RecordOutcomes(outcomes); err != nil {
			return err
		}
		logger.Info("Contest %d: stored %d outcomes", c.ID, len(outcomes))
	}
	return nil
}

// sampleHandles extracts rated participants and stores a stratified
// sample as the dataset population.
func (p *pipeline) sampleHandles(ctx context.Context) error {
	contests, err := p.store.Contests()
	if err != nil {
		return err
	}
	ids := make([]int, 0, len(contests))
	for _, c := range contests {
		ids = append(ids, c.ID)
	}

	pool, skipped, err := sampler.ExtractHandles(ctx, p.client, ids)
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		logger.Warn("Handle extraction skipped %d contests", len(skipped))
	}

	sampled := sampler.StratifiedSample(pool, sampler.DefaultBuckets(),
		p.cfg.Sampling.TotalTarget, p.cfg.Sampling.Seed)
	return p.store.ReplaceHandles(sampled)
}

// ingestRatings backfills the rating history of every sampled handle,
// with one retry pass over failures.
func (p *pipeline) ingestRatings(ctx context.Context) error {
	handles, err := p.store.SampledHandles()
	if err != nil {
		return err
	}

	fetchOne := func(handle string) (bool, error) {
		has, err := p.store.HasRatingData(handle)
		if err != nil {
			return false, err
		}
		if has {
			return true, nil
		}
		events, err := p.client.UserRating(ctx, handle)
		if err != nil {
			return false, nil
		}
		if len(events) == 0 {
			return false, nil
		}
		return true, p.store.RecordRatingEvents(events)
	}

	success := 0
	var failed []string
	for _, handle := range handles {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := fetchOne(handle)
		if err != nil {
			return err
		}
		if ok {
			success++
		} else {
			failed = append(failed, handle)
		}
	}
	for _, handle := range failed {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := fetchOne(handle)
		if err != nil {
			return err
		}
		if ok {
			success++
		}
	}
	logger.Info("Rating histories stored for %d/%d handles", success, len(handles))
	return nil
}

// buildDataset assembles the feature dataset over the sampled handles.
func (p *pipeline) buildDataset(ctx context.Context) error {
	cat, err := catalog.New(p.store, p.client)
	if err != nil {
		return err
	}
	contestStats, err := p.store.LoadContestStatistics()
	if err != nil {
		return err
	}
	if len(contestStats) == 0 {
		return fmt.Errorf("no contest statistics; run the stats stage first")
	}

	caches := features.NewCaches()
	engine := features.New(p.store, cat, contestStats, caches, p.client, p.cfg.Dataset.DeltaWindow)
	assembler := dataset.New(p.store, engine, caches, dataset.Config{
		OutputDir:          p.cfg.Dataset.OutputDir,
		ChunkCount:         p.cfg.Dataset.ChunkCount,
		Normalize:          p.cfg.Dataset.Normalize,
		Seed:               p.cfg.Dataset.Seed,
		RatingPivot:        p.cfg.Dataset.RatingPivot,
		ProblemRatingPivot: p.cfg.Dataset.ProblemRatingPivot,
	})

	summary, err := assembler.Run(ctx, *chunkOffset)
	if err != nil {
		return err
	}
	if p.notifier != nil {
		if err := p.notifier.SendSummary(summary.RunID, summary.Emitted,
			summary.Skipped, summary.Chunks, summary.Duration); err != nil {
			logger.Warn("Failed to send summary notification: %v", err)
		}
	}
	return nil
}
