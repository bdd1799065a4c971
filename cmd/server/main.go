// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/whatsapp-campaigns/internal/app"
	"github.com/unclebandit/whatsapp-campaigns/internal/config"
	"github.com/unclebandit/whatsapp-campaigns/internal/controller"
	"github.com/unclebandit/whatsapp-campaigns/internal/handler"
	"github.com/unclebandit/whatsapp-campaigns/internal/logger"
	"github.com/unclebandit/whatsapp-campaigns/internal/metrics"
	"github.com/unclebandit/whatsapp-campaigns/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	lg := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(ctx, cfg, metrics.New(reg), lg)
	if err != nil {
		lg.WithError(err).Fatal("❌ Failed to start")
	}
	defer a.Close()

	campaignController := &controller.CampaignController{
		CampaignService:  a.Campaigns,
		AutoReplyService: a.AutoReply,
		Log:              lg,
	}
	webhookHandler := handler.NewWebhookHandler(a.Queue, lg)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(lg))
	r.Use(middleware.Recoverer)

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Post("/webhooks/whatsapp", webhookHandler.WhatsAppWebhook)
	campaignController.Routes(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Infof("🚀 Server running on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Without a broker the server also runs the queue consumers and the
	// schedule poller; otherwise cmd/worker does.
	if a.InProcess() {
		if err := a.Worker.Start(gctx, a.Queue); err != nil {
			lg.WithError(err).Fatal("❌ Failed to subscribe worker")
		}
		g.Go(func() error {
			return service.RunScheduler(gctx, a.Campaigns, cfg.SchedulePoll, lg)
		})
	}

	if err := g.Wait(); err != nil {
		lg.WithError(err).Error("❌ Server stopped with error")
	}
	lg.Info("👋 Server stopped")
}

func requestLogger(lg logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			lg.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Debug("request")
		})
	}
}
