package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"restaurant-order-engine/config"
	"restaurant-order-engine/engine"
	"restaurant-order-engine/handlers"
	"restaurant-order-engine/journal"
	"restaurant-order-engine/logging"
	"restaurant-order-engine/media"
	"restaurant-order-engine/middleware"
	"restaurant-order-engine/relay"
	"restaurant-order-engine/routes"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Development())
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	db, err := config.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	logger.Info("database connected and migrated", zap.String("path", cfg.DBPath))

	images, err := media.NewStore(cfg.UploadDir, cfg.PublicBaseURL, "/static/images")
	if err != nil {
		return err
	}

	eng := engine.New(engine.WithLogger(logger.Named("engine")))
	recorder := journal.NewRecorder(db, logger.Named("journal"), cfg.EventBuffer)

	h := &handlers.Handler{
		Engine:      eng,
		DB:          db,
		Journal:     recorder,
		Images:      images,
		JWTSecret:   []byte(cfg.JWTSecret),
		EventBuffer: cfg.EventBuffer,
		Log:         logger.Named("http"),
	}

	if err := h.EnsureAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return err
	}

	var fwd *relay.Relay
	if cfg.RabbitMQURL != "" {
		conn, ch, err := relay.Dial(cfg.RabbitMQURL)
		if err != nil {
			return err
		}
		defer conn.Close()
		defer ch.Close()
		fwd = relay.New(ch, logger.Named("relay"), cfg.EventBuffer)
		logger.Info("event relay enabled", zap.String("exchange", relay.Exchange))
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger.Named("http")), middleware.CORS())
	routes.SetupRoutes(r, h)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end when the process shuts down.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error { return recorder.Run(gctx, eng.Bus()) })
	if fwd != nil {
		g.Go(func() error { return fwd.Run(gctx, eng.Bus()) })
	}

	g.Go(func() error {
		logger.Info("server running", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
