package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vytor/drillbot/internal/api"
	"github.com/vytor/drillbot/internal/config"
	"github.com/vytor/drillbot/internal/cron"
	"github.com/vytor/drillbot/internal/jobs"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/services"
	"github.com/vytor/drillbot/internal/telegram"
	"github.com/vytor/drillbot/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, workers, scheduled scans and the Telegram poller",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(parent context.Context, cfg config.Config) error {
	log := logger.Default()

	log.Info("===========================================")
	log.Info("drillbot starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_driver=%s", cfg.DBDriver)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("worker_count=%d queue_size=%d", cfg.WorkerCount, cfg.QueueSize)
	log.Debug("due_scan_interval=%s nudge_scan_interval=%s outbox_flush_interval=%s",
		cfg.DueScanInterval, cfg.NudgeScanInterval, cfg.OutboxFlushInterval)
	log.Debug("timezone=%s quiet_hours=%d-%d", cfg.Timezone, cfg.QuietHoursStart, cfg.QuietHoursEnd)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(logger.NewContext(parent, log))
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	inboundPool := worker.NewPool("inbound", cfg.WorkerCount, cfg.QueueSize)
	scanPool := worker.NewPool("scan", 1, 8)
	queue := jobs.NewWorkerQueue(inboundPool, scanPool, a.machine, a.machine, a.nudger, a.relay, nil)

	repos := a.store.Repos()
	srv := &api.Server{
		Conversation:   a.machine,
		UserService:    services.NewUserService(repos.Users, repos.Messages),
		MistakeService: services.NewMistakeService(repos.Users, repos.Mistakes),
		Queue:          queue,
		Store:          a.store,
		VerifyToken:    cfg.WebhookVerifyToken,
	}

	inboundPool.Start(ctx)
	scanPool.Start(ctx)

	sched := cron.New(cfg.Location())
	for _, task := range []cron.Task{
		{Name: "due_scan", Every: cfg.DueScanInterval, Run: func(context.Context) error { return queue.EnqueueDueScan() }},
		{Name: "nudge_scan", Every: cfg.NudgeScanInterval, Run: func(context.Context) error { return queue.EnqueueNudgeScan() }},
		{Name: "outbox_flush", Every: cfg.OutboxFlushInterval, Run: func(context.Context) error { return queue.EnqueueOutboxFlush() }},
	} {
		if err := sched.Add(ctx, task); err != nil {
			return err
		}
	}
	sched.Start()

	pollCtx, pollCancel := context.WithCancel(ctx)
	defer pollCancel()
	pollerDone := make(chan struct{})
	if a.telegram != nil {
		poller := telegram.NewPoller(a.telegram, repos.Users, queue, cfg.TelegramPollTimeout)
		go func() {
			defer close(pollerDone)
			if err := poller.Run(pollCtx); err != nil {
				log.Error("telegram poller stopped: %v", err)
			}
		}()
	} else {
		close(pollerDone)
		log.Info("TELEGRAM_TOKEN not set, telegram polling disabled")
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case sig := <-stop:
		log.Info("received signal %v, initiating graceful shutdown", sig)
	case err := <-serveErr:
		log.Error("HTTP server error: %v", err)
		sched.Stop()
		pollCancel()
		<-pollerDone
		inboundPool.Stop()
		scanPool.Stop()
		return err
	case <-parent.Done():
		log.Info("context cancelled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Debug("stopping scheduler")
	sched.Stop()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Debug("stopping telegram poller")
	pollCancel()
	<-pollerDone

	log.Debug("stopping inbound pool")
	inboundPool.Stop()
	log.Debug("stopping scan pool")
	scanPool.Stop()

	log.Info("===========================================")
	log.Info("drillbot stopped")
	log.Info("===========================================")
	return nil
}
