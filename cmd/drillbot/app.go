package main

import (
	"context"
	"fmt"

	"github.com/vytor/drillbot/internal/config"
	"github.com/vytor/drillbot/internal/conversation"
	"github.com/vytor/drillbot/internal/db"
	"github.com/vytor/drillbot/internal/gateway"
	"github.com/vytor/drillbot/internal/locker"
	"github.com/vytor/drillbot/internal/logger"
	"github.com/vytor/drillbot/internal/models"
	"github.com/vytor/drillbot/internal/nudge"
	"github.com/vytor/drillbot/internal/repository"
	"github.com/vytor/drillbot/internal/repository/sqlstore"
	"github.com/vytor/drillbot/internal/srs"
	"github.com/vytor/drillbot/internal/telegram"
)

// app holds the components shared by serve and the one-shot commands.
type app struct {
	cfg      config.Config
	db       *db.DB
	store    repository.Store
	locks    locker.Locker
	gateway  *gateway.Gateway
	relay    *gateway.Relay
	machine  *conversation.Machine
	nudger   *nudge.Scanner
	telegram telegram.API
	closers  []func() error
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log := logger.FromContext(ctx)
	a := &app{cfg: cfg}

	database, err := db.Open(cfg.DBDriver, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, database.Close)
	a.store = sqlstore.NewStore(database.DB)

	if cfg.RedisAddr != "" {
		client, err := locker.Dial(ctx, cfg.RedisAddr)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.locks = locker.NewRedis(client, cfg.RedisLockTTL)
		log.Info("using redis user locks at %s", cfg.RedisAddr)
	} else {
		a.locks = locker.NewMemory()
	}

	gwOpts := []gateway.Option{
		gateway.WithLimiter(gateway.NewLimiter(cfg.OutboundRate, cfg.OutboundBurst)),
	}
	if cfg.CallbackURL != "" {
		gwOpts = append(gwOpts,
			gateway.WithTransport(models.ChannelWhatsApp, gateway.NewHTTPTransport(cfg.CallbackURL, models.ChannelWhatsApp)),
			gateway.WithTransport(models.ChannelWebhook, gateway.NewHTTPTransport(cfg.CallbackURL, models.ChannelWebhook)),
		)
	}
	if cfg.TelegramToken != "" {
		bot, err := telegram.Connect(cfg.TelegramToken)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect telegram: %w", err)
		}
		a.telegram = bot
		gwOpts = append(gwOpts, gateway.WithTransport(models.ChannelTelegram, telegram.NewTransport(bot)))
	}
	a.gateway = gateway.New(a.store.Repos().Users, cfg.MessageMaxLength, gwOpts...)
	a.relay = gateway.NewRelay(a.gateway, a.store.Repos().Outbox, cfg.OutboxMaxAttempts)

	a.machine = conversation.NewMachine(a.store, a.locks, a.relay, conversationOptions(cfg))

	tiers, err := config.ParseNudgeTiers(cfg.NudgeTiers)
	if err != nil {
		a.close()
		return nil, err
	}
	a.nudger = nudge.NewScanner(a.store, a.locks, a.relay, tiers, nudge.WithConcurrency(cfg.ScanConcurrency))

	return a, nil
}

func conversationOptions(cfg config.Config) conversation.Options {
	return conversation.Options{
		Policy: srs.Policy{
			MinEase:             cfg.SM2MinEase,
			MaxHintPenalty:      cfg.SM2MaxHintPenalty,
			MaxIntervalDays:     cfg.SM2MaxIntervalDays,
			MasteryRepetitions:  cfg.MasteryRepetitions,
			MasteryIntervalDays: cfg.MasteryIntervalDays,
		},
		RecentWindow:      cfg.RecentQuestionWindow,
		PracticeWhenIdle:  cfg.PracticeWhenIdle,
		SessionTimeout:    cfg.SessionTimeout,
		ProactiveCooldown: cfg.ProactiveCooldown,
		QuietHoursStart:   cfg.QuietHoursStart,
		QuietHoursEnd:     cfg.QuietHoursEnd,
		Location:          cfg.Location(),
		ScanConcurrency:   cfg.ScanConcurrency,
	}
}

func (a *app) close() {
	log := logger.Default()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn("close: %v", err)
		}
	}
	a.closers = nil
}
