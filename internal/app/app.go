package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/vladmir0512/deadline-bot/internal/config"
	"github.com/vladmir0512/deadline-bot/internal/scheduler"
	"github.com/vladmir0512/deadline-bot/internal/store"
	syncpkg "github.com/vladmir0512/deadline-bot/internal/sync"
	"github.com/vladmir0512/deadline-bot/internal/telegram"
	"github.com/vladmir0512/deadline-bot/internal/verify"
)

type App struct {
	cfg     config.Config
	log     *zap.Logger
	bot     *tgbotapi.BotAPI
	httpSrv *http.Server
	repo    store.Repo
	router  *telegram.Router
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{cfg: cfg, log: log, bot: bot, httpSrv: srv}, nil
}

// openStore picks Postgres when DATABASE_URL is set, SQLite otherwise.
func (a *App) openStore(ctx context.Context) (store.Repo, error) {
	if a.cfg.DatabaseURL != "" {
		repo, err := store.OpenPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.log.Info("postgres ready")
		return repo, nil
	}
	repo, err := store.OpenSQLite(ctx, a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	a.log.Info("sqlite ready", zap.String("path", a.cfg.DBPath))
	return repo, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting deadline-bot",
		zap.String("http", a.cfg.HTTPAddr),
		zap.Duration("tick", a.cfg.TickInterval),
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := a.openStore(ctx)
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	a.repo = repo

	verifier := verify.NewService(repo, a.log, a.cfg.AdminIDs)

	// Sync against the external deadline feed, if one is configured.
	var runner *syncpkg.Runner
	if a.cfg.FeedURL != "" {
		rec := syncpkg.NewReconciler(repo, a.log, "feed")
		runner = syncpkg.NewRunner(rec, syncpkg.NewFeedClient(a.cfg.FeedURL), a.log, a.cfg.FeedInterval)
		go runner.Run(ctx)
	} else {
		a.log.Info("no feed configured, sync disabled")
	}

	a.router = telegram.NewRouter(a.bot, a.log, repo, verifier, runner, a.cfg.DefaultTZ)

	sched := scheduler.New(repo, a.log, a.router, a.cfg.TickInterval, a.cfg.DefaultTZ)
	go sched.Run(ctx)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")

			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := a.httpSrv.Shutdown(shCtx)
			cancel()

			if err != nil {
				a.log.Warn("http server shutdown error", zap.Error(err))
			}
			if a.repo != nil {
				_ = a.repo.Close()
			}
			return nil

		case upd := <-updCh:
			a.router.HandleUpdate(ctx, upd)
		}
	}
}
