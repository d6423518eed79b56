package main

import (
	"context"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/avdeyev/roster/assets"
	"github.com/avdeyev/roster/internal"
	"github.com/avdeyev/roster/internal/auth"
	authdb "github.com/avdeyev/roster/internal/auth/db"
	"github.com/avdeyev/roster/internal/db"
	"github.com/avdeyev/roster/internal/i18n"
	"github.com/avdeyev/roster/internal/migrate"
	"github.com/avdeyev/roster/internal/web"
	"github.com/avdeyev/roster/internal/web/sessions"
	"github.com/avdeyev/roster/internal/web/view"
	"github.com/avdeyev/roster/migrations"
	gsessions "github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	translator, err := i18n.New("en")
	if err != nil {
		logger.Error("failed to load translations", "error", err)
		return 1
	}

	funcs := template.FuncMap{
		"t": translator.T,
	}

	// By default the embedded templates are parsed once up front. With
	// HTTP_VIEW_DIR set they are loaded from disk on every request, so
	// changes show up without a rebuild.
	var renderer web.ViewRenderer
	if cfg.http.viewDir != "" {
		logger.Info("loading templates from disk", "dir", cfg.http.viewDir)
		renderer = view.NewFSRenderer(os.DirFS(cfg.http.viewDir), funcs)
	} else {
		memRenderer, err := view.NewMemRenderer(assets.TemplateFS, funcs)
		if err != nil {
			logger.Error("failed to parse templates", "error", err)
			return 1
		}
		renderer = memRenderer
	}

	writeDB, err := db.OpenSQLite(cfg.db.file, true)
	if err != nil {
		logger.Error("failed to open database for writing", "error", err)
		return 1
	}
	defer writeDB.Close()

	if cfg.db.migrate {
		logger.Info("attempting to migrate database", "filename", cfg.db.file)

		meta := migrate.Metadata{
			AppVersion: internal.BuildRevision,
			Timestamp:  internal.BuildRevisionTime,
		}

		ran, err := migrate.RunFS(ctx, writeDB, migrations.FS, meta)
		if err != nil {
			logger.Error("failed to migrate database", "error", err)
			return 1
		}

		for _, m := range ran {
			logger.Info("migration ran", "sequence", m.Sequence, "filename", m.Filename)
		}
	}

	readDB, err := db.OpenSQLite(cfg.db.file, false)
	if err != nil {
		logger.Error("failed to open database for reading", "error", err)
		return 1
	}
	defer readDB.Close()

	authService, err := auth.NewService(authdb.New(writeDB, readDB))
	if err != nil {
		logger.Error("failed to create auth service", "error", err)
		return 1
	}

	keyPairs := make([][]byte, 0, len(cfg.http.cookieKeys))
	for _, key := range cfg.http.cookieKeys {
		keyPairs = append(keyPairs, key.SecretValue())
	}

	cookieStore := gsessions.NewCookieStore(keyPairs...)
	cookieStore.Options = &gsessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   cfg.http.server.SecureCookie,
	}

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler: web.NewServer(&web.ServerDeps{
			Logger:       logger,
			ViewRenderer: renderer,
			AuthService:  authService,
			SessionStore: sessions.NewStore(cookieStore),
			DistFS:       http.FS(assets.DistFS),
		}, cfg.http.server),
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}
