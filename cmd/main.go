package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"janus/internal/adapters/clickhouse"
	"janus/internal/adapters/config"
	"janus/internal/adapters/errors/noop"
	"janus/internal/adapters/errors/sentry"
	"janus/internal/adapters/fred"
	"janus/internal/adapters/kafka"
	"janus/internal/adapters/marketdata"
	"janus/internal/adapters/postgres"
	"janus/internal/adapters/ratelimit"
	"janus/internal/adapters/redis"
	"janus/internal/domain/calendar"
	"janus/internal/events"
	"janus/internal/metrics"
	chrepo "janus/internal/repository/clickhouse"
	pgrepo "janus/internal/repository/postgres"
	redisrepo "janus/internal/repository/redis"
	reactionsvc "janus/internal/services/reaction"
	"janus/internal/services/schedule"
	"janus/internal/services/stats"
	syncsvc "janus/internal/services/sync"
	"janus/internal/workers"
	calendarworker "janus/internal/workers/calendar"
	reactionworker "janus/internal/workers/reaction"
	syncworker "janus/internal/workers/sync"
	"janus/pkg/errors"
	"janus/pkg/logger"
)

const (
	exitOK = 0
	// exitPartial signals a run that completed but accumulated
	// recoverable errors; operators retry or inspect logs
	exitPartial = 2
	exitFatal   = 1
)

func main() {
	job := flag.String("job", "", "one-shot job: extend|sync|backfill|stats (empty = daemon)")
	event := flag.String("event", "all", "event key for -job sync/stats (cpi|ppi|nfp|unrate|fomc|all)")
	from := flag.String("from", "", "start date YYYY-MM-DD for -job backfill")
	to := flag.String("to", "", "end date YYYY-MM-DD for -job backfill")
	through := flag.Int("through", 0, "last year to seed for -job extend (default: next year)")
	day := flag.String("day", "", "occurrence date YYYY-MM-DD for -job stats (prints the archived rows)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	app, err := buildApp(cfg)
	if err != nil {
		log.Errorf("Initialization failed: %v", err)
		os.Exit(exitFatal)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var code int
	switch *job {
	case "":
		code = runDaemon(ctx, cancel, cfg, app, log)
	case "extend":
		code = runExtend(ctx, app, *through, log)
	case "sync":
		code = runSync(ctx, cfg, app, *event, log)
	case "backfill":
		code = runBackfill(ctx, cfg, app, *from, *to, log)
	case "stats":
		code = runStats(ctx, app, *event, *day, log)
	default:
		log.Errorf("Unknown job %q (want extend, sync, backfill or stats)", *job)
		code = exitFatal
	}

	errorTracker.Flush(context.Background())
	os.Exit(code)
}

// app bundles the shared storage clients and pipeline services
type app struct {
	pg *postgres.Client
	ch *clickhouse.Client
	rd *redis.Client

	publisher events.Publisher
	producer  *kafka.Producer

	occurrences calendar.Repository
	reactions   *redisrepo.ReactionRepository
	archive     *chrepo.MarketArchive

	schedule *schedule.Service
}

func buildApp(cfg *config.Config) (*app, error) {
	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}

	ch, err := clickhouse.NewClient(cfg.ClickHouse)
	if err != nil {
		return nil, errors.Wrap(err, "connect clickhouse")
	}

	rd, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}

	a := &app{
		pg:          pg,
		ch:          ch,
		rd:          rd,
		occurrences: pgrepo.NewOccurrenceRepository(pg.DB()),
		reactions:   redisrepo.NewReactionRepository(rd),
		archive:     chrepo.NewMarketArchive(ch.Conn()),
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.producer = kafka.NewProducer(cfg.Kafka.Brokers)
		a.publisher = events.NewKafkaPublisher(a.producer)
	} else {
		a.publisher = events.NewNoopPublisher()
	}

	a.schedule = schedule.NewService(a.occurrences)

	return a, nil
}

// backfillService wires the market-data client behind the shared rate
// limiter into the backfill engine
func (a *app) backfillService(cfg *config.Config) *reactionsvc.Service {
	limiter := ratelimit.NewLimiter("marketdata", cfg.MarketData.CallDelay)
	market := marketdata.NewClient(cfg.MarketData, limiter)
	return reactionsvc.NewService(a.occurrences, a.reactions, market, a.archive, a.publisher, cfg.MarketData.OccurrenceDelay)
}

// syncService builds the synchronizer. A missing statistics API key is a
// configuration error and aborts before any occurrence is touched.
func (a *app) syncService(cfg *config.Config) (*syncsvc.Service, error) {
	source, err := fred.NewClient(cfg.Fred)
	if err != nil {
		return nil, err
	}
	return syncsvc.NewService(a.occurrences, source, a.backfillService(cfg), a.publisher, cfg.Fred.Lookback), nil
}

func (a *app) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	a.pg.Close()
	a.ch.Close()
	a.rd.Close()
}

func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, a *app, log *logger.Logger) int {
	scheduler := workers.NewScheduler()

	scheduler.RegisterWorker(calendarworker.NewScheduleExtender(
		a.schedule,
		cfg.Workers.ScheduleExtendInterval,
		cfg.Workers.ScheduleExtendEnabled,
	))

	if cfg.Workers.ObservedSyncEnabled {
		syncService, err := a.syncService(cfg)
		if err != nil {
			log.Errorf("Cannot start observed-value sync: %v", err)
			return exitFatal
		}
		scheduler.RegisterWorker(syncworker.NewObservedValueWorker(
			syncService,
			cfg.Workers.ObservedSyncInterval,
			true,
		))
	}

	scheduler.RegisterWorker(reactionworker.NewBackfillWorker(
		a.backfillService(cfg),
		cfg.Workers.ReactionBackfillInterval,
		cfg.Workers.ReactionBackfillEnabled,
	))

	var metricsSrv interface{ Close() error }
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.Serve(cfg.Metrics.Port)
		log.Infow("Metrics server started", "port", cfg.Metrics.Port)
	}

	if err := scheduler.Start(ctx); err != nil {
		log.Errorf("Failed to start scheduler: %v", err)
		return exitFatal
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infow("Shutdown signal received", "signal", sig)

	cancel()
	if err := scheduler.Stop(); err != nil {
		log.Warnf("Scheduler shutdown: %v", err)
	}
	if metricsSrv != nil {
		metricsSrv.Close()
	}

	return exitOK
}

func runExtend(ctx context.Context, a *app, through int, log *logger.Logger) int {
	startYear := time.Now().UTC().Year()
	endYear := through
	if endYear == 0 {
		endYear = startYear + 1
	}

	written, err := a.schedule.Extend(ctx, startYear, endYear)
	if err != nil {
		if written == 0 {
			log.Errorf("Schedule extension failed: %v", err)
			return exitFatal
		}
		log.Warnf("Schedule extension completed with errors: %v", err)
		fmt.Printf("extend: %s occurrences written, completed with errors\n", humanize.Comma(int64(written)))
		return exitPartial
	}

	fmt.Printf("extend: %s occurrences written (%d-%d)\n", humanize.Comma(int64(written)), startYear, endYear)
	return exitOK
}

func runSync(ctx context.Context, cfg *config.Config, a *app, event string, log *logger.Logger) int {
	syncService, err := a.syncService(cfg)
	if err != nil {
		log.Errorf("Sync aborted: %v", err)
		return exitFatal
	}

	var res syncsvc.Result
	if event == "all" {
		res = syncService.SyncAll(ctx)
	} else {
		eventKey := calendar.EventType(event)
		if !eventKey.Valid() {
			log.Errorf("Unknown event key %q", event)
			return exitFatal
		}
		res = syncService.Sync(ctx, eventKey)
	}

	fmt.Printf("sync: %s occurrences updated, %d errors\n", humanize.Comma(int64(res.Updated)), len(res.Errors))
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			log.Warnf("sync error: %v", e)
		}
		return exitPartial
	}
	return exitOK
}

func runStats(ctx context.Context, a *app, event, day string, log *logger.Logger) int {
	service := stats.NewService(a.reactions, a.archive)

	keys := calendar.AllEventTypes()
	if event != "all" {
		eventKey := calendar.EventType(event)
		if !eventKey.Valid() {
			log.Errorf("Unknown event key %q", event)
			return exitFatal
		}
		keys = []calendar.EventType{eventKey}
	}

	if day != "" {
		if len(keys) != 1 {
			log.Error("-day needs a single -event")
			return exitFatal
		}
		rows, err := service.ArchivedSeries(ctx, keys[0], day)
		if err != nil {
			log.Errorf("Archived rows unavailable for %s %s: %v", keys[0], day, err)
			return exitFatal
		}
		for _, row := range rows {
			fmt.Printf("%s  open=%.2f high=%.2f low=%.2f close=%.2f\n",
				row.Date, row.Open, row.High, row.Low, row.Close)
		}
		return exitOK
	}

	var failed int
	for _, key := range keys {
		agg, err := service.Aggregate(ctx, key)
		if err != nil {
			log.Warnf("stats error for %s: %v", key, err)
			failed++
			continue
		}

		line := fmt.Sprintf("stats: %s count=%s winRate=%.2f avgReturn=%.2f%%",
			key, humanize.Comma(int64(agg.Count)), agg.WinRate, agg.AvgReturn)

		if ranges, err := service.AverageRange(ctx, key, time.Time{}, time.Now().UTC()); err == nil && ranges.Rows > 0 {
			line += fmt.Sprintf(" avgRange=%.4f", ranges.AverageRange)
		}

		fmt.Println(line)
	}

	if failed > 0 {
		return exitPartial
	}
	return exitOK
}

func runBackfill(ctx context.Context, cfg *config.Config, a *app, from, to string, log *logger.Logger) int {
	service := a.backfillService(cfg)

	var res reactionsvc.Result
	var err error

	if from != "" || to != "" {
		fromDay, perr := time.Parse("2006-01-02", from)
		if perr != nil {
			log.Errorf("Invalid -from date %q: %v", from, perr)
			return exitFatal
		}
		toDay, perr := time.Parse("2006-01-02", to)
		if perr != nil {
			log.Errorf("Invalid -to date %q: %v", to, perr)
			return exitFatal
		}
		res, err = service.BackfillRange(ctx, fromDay, toDay.AddDate(0, 0, 1))
	} else {
		res, err = service.BackfillAll(ctx)
	}

	if err != nil {
		log.Errorf("Backfill failed before completion: %v", err)
		return exitFatal
	}

	fmt.Printf("backfill: %s computed, %s skipped, %d errors\n",
		humanize.Comma(int64(res.Computed)),
		humanize.Comma(int64(res.Skipped)),
		len(res.Errors),
	)
	if len(res.Errors) > 0 {
		for _, e := range res.Errors {
			log.Warnf("backfill error: %v", e)
		}
		return exitPartial
	}
	return exitOK
}
