package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"kakrola/config"
	"kakrola/internal/api"
	"kakrola/internal/auth"
	"kakrola/internal/db"
	"kakrola/internal/health"
	"kakrola/internal/invites"
	"kakrola/internal/logs"
	"kakrola/internal/middleware"
	"kakrola/internal/repo"
)

type App struct {
	cfg        *config.Config
	db         *gorm.DB
	Router     *mux.Router
	httpServer *http.Server
	closers    []io.Closer

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	/* 1) Логи */
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	/* 2) DB */
	d, err := db.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	a.db = d
	if err := db.Migrate(a.db); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}

	/* 3) Внешние бэкенды */
	gw := newBillingGateway(a.cfg)
	notifier, nc, err := newNotifier(a.cfg)
	if err != nil {
		return fmt.Errorf("notifier: %w", err)
	}
	a.addCloser(nc)
	kv, checks, cc, err := newCache(a.cfg)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	a.addCloser(cc)

	/* 4) Workflow приглашений */
	inviteStore := repo.NewInviteStore(a.db)
	memberStore := repo.NewMemberStore(a.db)
	acceptor := invites.NewAcceptor(
		inviteStore,
		repo.NewIntentStore(a.db),
		memberStore,
		repo.NewSubscriptionStore(a.db),
		gw,
		a.cfg.Invites.ExpiryDays,
	)
	issuer := invites.NewIssuer(inviteStore, memberStore, notifier, kv, invites.IssuerOptions{
		BaseURL:    a.cfg.App.BaseURL,
		ExpiryDays: a.cfg.Invites.ExpiryDays,
		MaxBatch:   a.cfg.Invites.MaxBatch,
		CacheTTL:   a.cfg.Cache.TTL,
	})

	/* 5) Router + middleware */
	a.Router = mux.NewRouter().StrictSlash(true)
	a.Router.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.LoggerMW,
		auth.Middleware(auth.NewVerifier(a.cfg.Auth.JWTSecret)),
	)

	/* 6) Health */
	health.RegisterRoutesWithDB(a.Router, a.db, checks...) // /healthz, /readyz

	/* 7) Invite API */
	api.RegisterRoutes(a.Router, api.NewHandler(acceptor, issuer, a.cfg.App.BaseURL))

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := rt.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := rt.GetMethods()
		if len(methods) == 0 {
			methods = []string{"ANY"}
		}
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

func (a *App) addCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return fmt.Errorf("server not initialized")
	}

	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigs
		logs.Logger.Infof("shutdown signal: %s", s)
		a.cancel()
	}()

	a.httpServer = &http.Server{
		Addr:              bind,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second, // принятие может ждать биллинг
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Logger.Fatalf("http server error: %v", err)
		}
	}()

	<-a.ctx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		logs.Logger.Errorf("http shutdown: %v", err)
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logs.Logger.Warnf("close: %v", err)
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
