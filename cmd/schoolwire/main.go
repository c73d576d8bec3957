package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/LeventeLantos/schoolwire/internal/api"
	"github.com/LeventeLantos/schoolwire/internal/audience"
	"github.com/LeventeLantos/schoolwire/internal/cache"
	"github.com/LeventeLantos/schoolwire/internal/client"
	"github.com/LeventeLantos/schoolwire/internal/config"
	"github.com/LeventeLantos/schoolwire/internal/dispatch"
	"github.com/LeventeLantos/schoolwire/internal/logx"
	"github.com/LeventeLantos/schoolwire/internal/metrics"
	"github.com/LeventeLantos/schoolwire/internal/model"
	"github.com/LeventeLantos/schoolwire/internal/registry"
	"github.com/LeventeLantos/schoolwire/internal/repo"
	"github.com/LeventeLantos/schoolwire/internal/scheduler"
	"github.com/LeventeLantos/schoolwire/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("load config")
	}

	log := logx.New(logx.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("schoolwire exited")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	now := func() time.Time { return time.Now().UTC() }
	m := metrics.New()

	var ledger repo.Ledger
	ledgerBackend := "memory"
	if cfg.Database.PostgresURL != "" {
		pool, err := repo.ConnectPostgres(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()

		pg := repo.NewPostgresLedger(pool, now)
		if err := pg.Ready(ctx); err != nil {
			return err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		ledger = pg
		ledgerBackend = "postgres"
	} else {
		ledger = repo.NewMemoryLedger(now)
	}

	var statusCache cache.StatusCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, status cache writes will fail")
		}
		statusCache = cache.NewRedisCache(rdb, cfg.Redis.TTL)
	}

	contacts := repo.NewMemoryContacts()
	templates := repo.NewStaticCatalog(repo.DefaultTemplates())
	reg := registry.New(repo.NewMemoryEvents(), templates, now)
	engine := dispatch.NewEngine(ledger, cfg.Dispatch.Workers).
		WithClock(now).
		WithHooks(m.RecordQueued, m.RecordSkipped)

	notifier := service.NewNotifier(service.NotifierDeps{
		Contacts:  contacts,
		Templates: templates,
		Registry:  reg,
		Audience:  audience.NewResolver(contacts),
		Engine:    engine,
		Ledger:    ledger,
		Cache:     statusCache,
		Metrics:   m,
		Log:       log,
	})

	sender := service.NewSender(ledger, contacts, channelSenders(cfg.Providers), service.SenderConfig{
		ContentMax: cfg.Providers.ContentMax,
		BatchSize:  cfg.Scheduler.BatchSize,
		RatePerSec: cfg.Providers.RatePerSec,
	}, log).WithHooks(notifier.OnSent, notifier.OnFailed)

	sched, err := scheduler.New("transmit", cfg.Scheduler.Interval, func(ctx context.Context) int {
		sent, failed := sender.ProcessBatch(ctx)
		return sent + failed
	}, log)
	if err != nil {
		return err
	}
	if cfg.Scheduler.AutoStart {
		sched.Start()
	}
	defer sched.Stop()

	mux := api.Router(api.NewHandler(notifier, sched, ledgerBackend, log))
	mux.Handle("GET /metrics", m.Handler())

	srv := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.Chain(mux,
			func(next http.Handler) http.Handler { return loggingMiddleware(log, next) },
			api.Metrics(m),
			api.BodyLimit(cfg.Server.MaxBodyBytes),
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Server.Address).
			Str("ledger", ledgerBackend).
			Bool("redis", cfg.Redis.Enabled).
			Strs("transmit_channels", channelNames(sender.Channels())).
			Msg("schoolwire starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func channelSenders(p config.ProviderConfig) map[model.Channel]service.ChannelSender {
	out := map[model.Channel]service.ChannelSender{}
	if p.SMSURL != "" {
		out[model.SMS] = client.NewWebhookClient(p.SMSURL)
	}
	if p.VoiceURL != "" {
		out[model.Voice] = client.NewWebhookClient(p.VoiceURL)
	}
	if p.EmailURL != "" {
		out[model.Email] = client.NewWebhookClient(p.EmailURL)
	}
	return out
}

func channelNames(chs []model.Channel) []string {
	out := make([]string, 0, len(chs))
	for _, c := range chs {
		out = append(out, string(c))
	}
	return out
}

func loggingMiddleware(log zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := api.NewStatusRecorder(w)

		next.ServeHTTP(rec, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.Status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
