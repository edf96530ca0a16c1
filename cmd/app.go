package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medibot/checker"
	"medibot/config"
	"medibot/notifier"
	"medibot/parser"
	"medibot/storage"

	"github.com/rs/zerolog/log"
)

// app wires one config into the checker, Telegram and the optional run lock
type app struct {
	cfg      *config.Config
	checker  *checker.Checker
	telegram *notifier.Telegram
	store    *storage.Storage
}

func newApp(cfg *config.Config) (*app, error) {
	tg, err := notifier.NewTelegram(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	a := &app{
		cfg:      cfg,
		checker:  checker.New(cfg, parser.NewClient(cfg.Timeout(), cfg.UserAgent), tg),
		telegram: tg,
	}

	if cfg.Redis.Addr != "" {
		a.store = storage.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.LockTTL())
		a.checker.Lock = a.store
		log.Info().Str("addr", cfg.Redis.Addr).Msg("🔒 Run lock enabled")
	}
	return a, nil
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// runOnce performs one pass. Operator cancellation returns nil; any other
// failure, panics included, is reported to Telegram before it is returned.
func (a *app) runOnce(ctx context.Context) (err error) {
	log.Info().Msg(strings.Repeat("=", 60))
	log.Info().Msg("🚀 Medibot started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		switch {
		case err == nil:
			log.Info().Msg("🏁 Medibot finished")
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			log.Info().Msg("❌ Medibot stopped by user")
			err = nil
		default:
			log.Error().Err(err).Msg("💥 Unexpected error")
			a.reportStartupError(ctx, err)
		}
	}()

	summary, err := a.checker.RunOnce(ctx)
	if err != nil {
		return err
	}
	log.Info().Msgf("📊 Result: %s", summary)
	return nil
}

func (a *app) reportStartupError(ctx context.Context, runErr error) {
	if !a.cfg.HasCredentials() {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Timeout())
	defer cancel()

	text := notifier.ComposeStartupError(fmt.Errorf("unexpected error: %w", runErr), time.Now().In(a.cfg.Location()))
	if err := a.telegram.Send(sendCtx, text); err != nil {
		log.Error().Err(err).Msg("❌ Startup error notification failed")
	}
}
