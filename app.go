package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/dish-advisor/internal/config"
	"github.com/example/dish-advisor/internal/handlers"
	"github.com/example/dish-advisor/internal/httpclient"
	"github.com/example/dish-advisor/internal/logging"
	"github.com/example/dish-advisor/internal/middleware"
	"github.com/example/dish-advisor/internal/ollama"
	"github.com/example/dish-advisor/internal/presenter"
	"github.com/example/dish-advisor/internal/staging"
	"github.com/example/dish-advisor/internal/usecase"
)

type app struct {
	cfg    *config.Config
	logger *zap.Logger
	client *ollama.Client
	uc     *usecase.DishQueryUseCase
}

func bootstrap(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a, err := newApp(cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := staging.NewStore(cfg.Staging.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("staging store: %w", err)
	}
	if _, err := store.Sweep(); err != nil {
		logger.Warn("failed to sweep staging dir", zap.String("dir", store.Dir()), zap.Error(err))
	}

	client := ollama.New(ollama.Options{
		BaseURL: cfg.Inference.BaseURL,
		HTTPClient: httpclient.New(httpclient.Options{
			PreferIPv4: cfg.Inference.PreferIPv4,
			Timeout:    cfg.Inference.Timeout,
		}),
		Logger: logger,
	})
	invoker := usecase.NewInvoker(store, client, cfg.Inference.Model, cfg.Inference.MaxConcurrent, logger)

	return &app{
		cfg:    cfg,
		logger: logger,
		client: client,
		uc:     usecase.NewDishQueryUseCase(invoker, logger),
	}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) router() *gin.Engine {
	gin.SetMode(a.cfg.Server.Mode)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(a.logger), middleware.Recovery(a.logger))
	r.MaxMultipartMemory = a.cfg.Server.MaxUploadBytes

	handlers.RegisterRoutes(r, a.uc, handlers.Options{
		Title:            a.cfg.UI.Title,
		ShowErrorDetails: a.cfg.UI.ShowErrorDetails,
		MaxUploadBytes:   a.cfg.Server.MaxUploadBytes,
		Readiness:        a.client,
	})
	return r
}

// serve runs the HTTP server until it fails or a shutdown signal arrives. A nil
// listener binds server.addr; a nil signal channel listens for SIGINT and SIGTERM.
func (a *app) serve(listener net.Listener, signalCh <-chan os.Signal) error {
	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.router(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	a.logger.Info("dish advisor listening",
		zap.String("addr", a.cfg.Server.Addr),
		zap.String("inference_url", a.cfg.Inference.BaseURL),
		zap.String("model", a.cfg.Inference.Model))
	return runServer(server, a.cfg.Server.ShutdownTimeout, a.logger, listener, signalCh)
}

// ask runs a single interaction for the CLI and writes the rendered result to out.
func (a *app) ask(ctx context.Context, out io.Writer, imagePath, question string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var upload *usecase.Upload
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		upload = &usecase.Upload{Filename: filepath.Base(imagePath), Data: data}
	}

	outcome := a.uc.Ask(ctx, upload, question)
	view := presenter.Present(outcome, presenter.Options{ShowErrorDetails: a.cfg.UI.ShowErrorDetails})
	if _, err := fmt.Fprintln(out, presenter.RenderTerminal(view)); err != nil {
		return err
	}
	if outcome.Status != usecase.OutcomeAnswered {
		return errUnanswered
	}
	return nil
}
