package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medibot/config"
	"medibot/notifier"
	"medibot/parser"
	"medibot/storage"
	"medibot/types"

	"github.com/rs/zerolog/log"
)

// summaryThreshold is the number of checked doctors from which an
// "all quiet" summary is sent when nothing else was
const summaryThreshold = 3

// Fetcher loads availabilities.json for a rewritten URL
type Fetcher interface {
	FetchAvailability(ctx context.Context, availabilityURL string) (*types.AvailabilityPayload, error)
}

// Dispatcher delivers a composed message
type Dispatcher interface {
	Send(ctx context.Context, text string) error
}

// RunLock keeps two invocations from running at the same time
type RunLock interface {
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error
}

// Clock interface for testing time-dependent behavior.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Sleeper waits between doctors; it returns early with ctx.Err() on cancellation
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Checker struct {
	Config   *config.Config
	Fetcher  Fetcher
	Notifier Dispatcher
	Lock     RunLock // nil disables locking
	Clock    Clock
	Sleeper  Sleeper
}

func New(cfg *config.Config, fetcher Fetcher, dispatcher Dispatcher) *Checker {
	return &Checker{
		Config:   cfg,
		Fetcher:  fetcher,
		Notifier: dispatcher,
		Clock:    realClock{},
		Sleeper:  timerSleeper{},
	}
}

// RunOnce checks every configured doctor in order and returns the counters.
// Per-doctor failures are logged and never abort the pass; only context
// cancellation and lock errors are returned.
func (c *Checker) RunOnce(ctx context.Context) (types.RunSummary, error) {
	var summary types.RunSummary

	if c.Lock != nil {
		if err := c.Lock.Acquire(ctx); err != nil {
			if errors.Is(err, storage.ErrLockHeld) {
				log.Warn().Msg("🔒 Another run is still in progress, skipping this one")
				summary.Skipped = true
				return summary, nil
			}
			return summary, err
		}
		defer c.releaseLock(ctx)
	}

	doctors := c.Config.Doctors
	delay := c.Config.RequestDelay()

	log.Info().Msgf("📋 Checking appointments for %d doctors", len(doctors))
	log.Info().Msgf("📅 Looking for appointments within the next %d days", c.Config.UpcomingDays)

	for i, doctor := range doctors {
		log.Info().Msgf("[%d/%d] 🔍 Checking %s...", i+1, len(doctors), doctor.Name)
		summary.Checked++

		res, err := c.CheckDoctor(ctx, doctor)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			summary.Failed++
			logCheckError(doctor, err)
		case res.Notify():
			if c.dispatch(ctx, doctor, res) {
				summary.Sent++
			}
		default:
			log.Info().Str("doctor", doctor.Name).Msg("  ℹ️ No early appointments")
		}

		if i < len(doctors)-1 && delay > 0 {
			log.Debug().Msgf("  ⏱️ Waiting %s...", delay)
			if err := c.Sleeper.Sleep(ctx, delay); err != nil {
				return summary, err
			}
		}
	}

	log.Info().Msgf("✅ Appointment check finished: %d/%d notifications sent", summary.Sent, summary.Checked)

	if summary.Checked >= summaryThreshold && summary.Sent == 0 {
		text := notifier.ComposeSummary(summary.Checked, c.now())
		if err := c.Notifier.Send(ctx, text); err != nil {
			log.Error().Err(err).Msg("❌ Summary notification failed")
		} else {
			log.Info().Msg("📊 Summary notification sent")
		}
	}

	return summary, nil
}

// CheckDoctor fetches one doctor's availabilities and decides whether to notify
func (c *Checker) CheckDoctor(ctx context.Context, doctor types.Doctor) (types.AvailabilityResult, error) {
	now := c.now()

	availabilityURL, err := parser.BuildAvailabilityURL(doctor.AvailabilitiesURL, c.Config.UpcomingDays, now)
	if err != nil {
		return types.AvailabilityResult{}, err
	}

	payload, err := c.Fetcher.FetchAvailability(ctx, availabilityURL)
	if err != nil {
		return types.AvailabilityResult{}, err
	}

	res, err := Evaluate(payload, c.Config.UpcomingDays, c.Config.NotifyHourly, now)
	if err != nil {
		return types.AvailabilityResult{}, err
	}

	log.Info().Str("doctor", doctor.Name).Int("total", res.Total).
		Msgf("  📊 %d appointments in the next %d days", res.Total, c.Config.UpcomingDays)
	if res.Earliest != nil {
		log.Info().Str("doctor", doctor.Name).
			Msgf("  ✅ Early appointment: %s", res.Earliest.Format("02.01.2006 15:04"))
	}
	return res, nil
}

// Evaluate applies the notification rules to a decoded payload.
// Days are scanned in service order and the scan stops at the first day
// with slots before now+upcomingDays; Doctolib returns days ascending.
func Evaluate(payload *types.AvailabilityPayload, upcomingDays int, notifyHourly bool, now time.Time) (types.AvailabilityResult, error) {
	res := types.AvailabilityResult{Total: payload.Total}
	if res.Total == 0 {
		return res, nil
	}

	loc := now.Location()

	// next_slot is only ever shown in hourly mode
	if notifyHourly && payload.NextSlot != nil && *payload.NextSlot != "" {
		next, err := parser.ParseNaiveTime(*payload.NextSlot, loc)
		if err != nil {
			return res, fmt.Errorf("next_slot: %w", err)
		}
		res.NextSlot = &next
	}

	limit := now.AddDate(0, 0, upcomingDays)
	for _, day := range payload.Availabilities {
		if len(day.Slots) == 0 {
			continue
		}
		date, err := parser.ParseNaiveTime(day.Date, loc)
		if err != nil {
			return res, err
		}
		res.Days = append(res.Days, types.DaySlots{Date: date, Count: len(day.Slots)})

		if date.Before(limit) {
			res.Earliest = &date
			break
		}
	}

	switch {
	case res.Earliest != nil:
		res.Reason = types.ReasonEarlySlot
	case notifyHourly && now.Minute() == 0:
		res.Reason = types.ReasonHourly
	}
	return res, nil
}

func (c *Checker) dispatch(ctx context.Context, doctor types.Doctor, res types.AvailabilityResult) bool {
	text := notifier.ComposeDoctorMessage(c.Config, doctor, res)
	if err := c.Notifier.Send(ctx, text); err != nil {
		log.Error().Str("doctor", doctor.Name).Err(err).Msg("  ❌ Notification failed")
		return false
	}
	log.Info().Str("doctor", doctor.Name).Str("reason", res.Reason.String()).Msg("  📱 Notification sent")
	return true
}

func (c *Checker) releaseLock(ctx context.Context) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.Lock.Release(releaseCtx); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to release run lock")
	}
}

func (c *Checker) now() time.Time {
	return c.Clock.Now().In(c.Config.Location())
}

func logCheckError(doctor types.Doctor, err error) {
	event := log.Error().Str("doctor", doctor.Name).Err(err)
	switch {
	case errors.Is(err, parser.ErrRemote):
		event.Msg("  ❌ HTTP error")
	case errors.Is(err, parser.ErrConnectivity):
		event.Msg("  ❌ Connection error")
	case errors.Is(err, parser.ErrParse):
		event.Msg("  ❌ Response could not be parsed")
	default:
		event.Msg("  ❌ Unexpected error")
	}
}
