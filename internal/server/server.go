// Package server exposes the webhook endpoint.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/dispatcher"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

type Dispatcher interface {
	Dispatch(ctx context.Context, update *models.Update) dispatcher.Result
}

type Options struct {
	Listen        string
	Path          string
	SecretToken   string
	HandleTimeout time.Duration
	// HealthCheck backs /healthz; nil means always healthy.
	HealthCheck func(ctx context.Context) error
}

type Server struct {
	opts       Options
	dispatcher Dispatcher
	engine     *gin.Engine
}

func New(d Dispatcher, opts Options) *Server {
	if opts.Path == "" {
		opts.Path = "/webhook"
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 30 * time.Second
	}
	s := &Server{opts: opts, dispatcher: d}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	engine.GET("/healthz", s.healthz)
	engine.POST(opts.Path, s.webhook)
	s.engine = engine
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.HTTP.Info("webhook server listening", slog.String("event", "http.listen"), slog.String("addr", s.opts.Listen), slog.String("path", s.opts.Path))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.HTTP.Info("webhook server stopped", slog.String("event", "http.stopped"))
	return nil
}

func (s *Server) healthz(c *gin.Context) {
	if s.opts.HealthCheck != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		if err := s.opts.HealthCheck(ctx); err != nil {
			logger.HTTP.Warn("health check failed", slog.String("event", "http.unhealthy"), slog.Any("err", err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": dispatcher.StatusError})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// webhook always answers 200 so the platform does not redeliver; the body
// tells what happened.
func (s *Server) webhook(c *gin.Context) {
	if s.opts.SecretToken != "" {
		got := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.SecretToken)) != 1 {
			logger.HTTP.Warn("webhook secret mismatch", slog.String("event", "http.unauthorized"), slog.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusOK, gin.H{"status": dispatcher.StatusError})
			return
		}
	}

	var update models.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		logger.HTTP.Warn("bad webhook payload", slog.String("event", "http.bad_payload"), slog.Any("err", err))
		c.JSON(http.StatusOK, gin.H{"status": dispatcher.StatusError})
		return
	}

	// The update is processed to the end even if the platform hangs up.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), s.opts.HandleTimeout)
	defer cancel()

	res := s.dispatcher.Dispatch(ctx, &update)
	c.JSON(http.StatusOK, gin.H{"status": res.Status})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		}
		if c.Writer.Status() >= 400 {
			logger.HTTP.Warn("http request", fields...)
			return
		}
		logger.HTTP.Debug("http request", fields...)
	}
}
