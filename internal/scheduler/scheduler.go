// Package scheduler runs the price update and signal evaluation jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"BandSentinel/internal/collector"
	"BandSentinel/internal/indicator"
	"BandSentinel/internal/logger"
	"BandSentinel/internal/metrics"
	"BandSentinel/internal/model"
	"BandSentinel/internal/notifier"
	"BandSentinel/internal/store"
	"BandSentinel/internal/strategy"
)

// SignalHistory reads recorded signals.
type SignalHistory interface {
	Signals(ctx context.Context, code, strategy string, since time.Time) ([]model.Signal, error)
}

// Options wires a Scheduler.
type Options struct {
	Updater      *collector.Updater
	Store        store.PriceStore
	Recorder     store.SignalRecorder // nil records nothing
	History      SignalHistory        // optional
	Notifier     notifier.Notifier
	Metrics      *metrics.Metrics
	Profiles     []strategy.Profile
	Watchlist    []model.Company // empty means every listed company
	LookbackDays int
	Workers      int
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context
	Now  func() time.Time

	opts Options
	mu   sync.Mutex // serializes update and evaluate runs
	log  zerolog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, opts Options) *Scheduler {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.LookbackDays < 1 {
		opts.LookbackDays = 400
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(nil)
	}
	if opts.Recorder == nil {
		opts.Recorder = store.NewNoopRecorder()
	}
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds()),
		Ctx:  ctx,
		Now:  time.Now,
		opts: opts,
		log:  logger.Component("scheduler"),
	}
}

// RegisterAll registers the update and evaluate jobs.
func (s *Scheduler) RegisterAll(updateCron, evaluateCron string) error {
	if _, err := s.Cron.AddFunc(updateCron, s.updateTask); err != nil {
		return fmt.Errorf("register update task: %w", err)
	}
	if _, err := s.Cron.AddFunc(evaluateCron, s.evaluateTask); err != nil {
		return fmt.Errorf("register evaluate task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow updates prices and evaluates immediately (for RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.updateTask()
	s.evaluateTask()
}

func (s *Scheduler) updateTask() {
	if s.opts.Updater == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info().Msg("running update task")
	now := s.Now()
	if _, err := s.opts.Updater.RefreshListings(s.Ctx, now); err != nil {
		s.log.Error().Err(err).Msg("refresh listings")
	}
	if _, err := s.opts.Updater.ReadRecent(s.Ctx, now); err != nil {
		s.log.Error().Err(err).Msg("update task")
		s.trySend(fmt.Sprintf("❌ price update failed: %v", err))
	}
}

func (s *Scheduler) evaluateTask() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info().Msg("running evaluate task")
	n, err := s.EvaluateAll(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("evaluate task")
		return
	}
	s.log.Info().Int("signals", n).Msg("evaluate task done")
}

// targets returns the watchlist with name-only entries resolved against the
// listing, or every listed company when the watchlist is empty.
func (s *Scheduler) targets(ctx context.Context) ([]model.Company, error) {
	if len(s.opts.Watchlist) == 0 {
		return s.opts.Store.Companies(ctx)
	}
	out := make([]model.Company, 0, len(s.opts.Watchlist))
	for _, c := range s.opts.Watchlist {
		if c.Code == "" {
			code, err := s.opts.Store.ResolveCode(ctx, c.Name)
			if err != nil {
				s.log.Warn().Str("name", c.Name).Err(err).Msg("skipping watchlist entry")
				continue
			}
			c.Code = code
		}
		out = append(out, c)
	}
	return out, nil
}

// EvaluateAll evaluates every target under every profile with bounded
// parallelism. A failing instrument is logged and does not stop the others.
// It returns the number of signals on the latest bars.
func (s *Scheduler) EvaluateAll(ctx context.Context) (int, error) {
	companies, err := s.targets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list companies: %w", err)
	}

	var mu sync.Mutex
	total := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for _, c := range companies {
		for _, p := range s.opts.Profiles {
			c, p := c, p
			g.Go(func() error {
				latest, err := s.evaluate(gctx, c, p, true)
				if err != nil {
					s.log.Error().Str("code", c.Code).Str("strategy", p.Name).Err(err).Msg("evaluate")
					return nil
				}
				mu.Lock()
				total += len(latest)
				mu.Unlock()
				return nil
			})
		}
	}
	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return total, err
}

// evaluate runs one profile over one instrument and returns the signals on
// the latest bar. With publish set, all signals are recorded and the latest
// ones are notified.
func (s *Scheduler) evaluate(ctx context.Context, c model.Company, p strategy.Profile, publish bool) ([]model.Signal, error) {
	start := time.Now()
	defer s.opts.Metrics.ObserveEval(p.Name, start)

	now := s.Now()
	series, err := s.opts.Store.GetPrice(ctx, c.Code, now.AddDate(0, 0, -s.opts.LookbackDays), now)
	if errors.Is(err, store.ErrEmptyRange) {
		s.log.Warn().Str("code", c.Code).Str("strategy", p.Name).Msg("no bars in lookback, skipping")
		return nil, nil
	}
	if err != nil {
		s.opts.Metrics.EvalErrors.WithLabelValues(p.Name).Inc()
		return nil, err
	}
	ind, signals, err := strategy.Evaluate(series, p)
	if errors.Is(err, indicator.ErrInsufficientData) {
		s.opts.Metrics.InsufficientData.WithLabelValues(p.Name).Inc()
		s.log.Warn().Str("code", c.Code).Str("strategy", p.Name).Err(err).Msg("skipping")
		return nil, nil
	}
	if err != nil {
		s.opts.Metrics.EvalErrors.WithLabelValues(p.Name).Inc()
		return nil, err
	}

	latest := onDate(signals, ind.Bars[ind.Len()-1].Date)
	if !publish {
		return latest, nil
	}

	if err := s.opts.Recorder.RecordSignals(ctx, c.Code, signals); err != nil {
		s.log.Error().Str("code", c.Code).Err(err).Msg("record signals")
	}
	for _, sig := range latest {
		s.opts.Metrics.SignalsTotal.WithLabelValues(p.Name, string(sig.Direction)).Inc()
	}
	if len(latest) > 0 && s.opts.Notifier != nil {
		if err := s.opts.Notifier.NotifySignals(ctx, notifier.Report{Profile: p.Name, Series: ind, Signals: latest}); err != nil {
			s.opts.Metrics.NotifyErrors.Inc()
			s.log.Error().Str("code", c.Code).Err(err).Msg("notify")
		}
	}
	return latest, nil
}

func onDate(signals []model.Signal, d time.Time) []model.Signal {
	var out []model.Signal
	for _, sig := range signals {
		if sig.Date.Equal(d) {
			out = append(out, sig)
		}
	}
	return out
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	arg := strings.TrimSpace(strings.TrimPrefix(command, fields[0]))

	switch fields[0] {
	case "/signals":
		if arg == "" {
			return "usage: /signals &lt;code|name&gt;"
		}
		return s.signalsReply(ctx, arg)
	case "/history":
		if arg == "" {
			return "usage: /history &lt;code|name&gt;"
		}
		return s.historyReply(ctx, arg)
	case "/status":
		last, ok, err := s.opts.Store.LastDate(ctx, "")
		switch {
		case err != nil:
			return fmt.Sprintf("❌ %v", err)
		case !ok:
			return "price store is empty"
		default:
			return fmt.Sprintf("last bar: %s", last.Format(model.DateLayout))
		}
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) signalsReply(ctx context.Context, key string) string {
	code, err := s.opts.Store.ResolveCode(ctx, key)
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	now := s.Now()
	series, err := s.opts.Store.GetPrice(ctx, code, now.AddDate(0, 0, -s.opts.LookbackDays), now)
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}

	var parts []string
	for _, p := range s.opts.Profiles {
		ind, signals, err := strategy.Evaluate(series, p)
		if err != nil {
			parts = append(parts, fmt.Sprintf("⚠️ %s: %v", p.Name, err))
			continue
		}
		latest := onDate(signals, ind.Bars[ind.Len()-1].Date)
		parts = append(parts, notifier.FormatSignalReport(notifier.Report{Profile: p.Name, Series: ind, Signals: latest}))
	}
	return strings.Join(parts, "\n\n")
}

func (s *Scheduler) historyReply(ctx context.Context, key string) string {
	if s.opts.History == nil {
		return "signal history is not recorded"
	}
	code, err := s.opts.Store.ResolveCode(ctx, key)
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	signals, err := s.opts.History.Signals(ctx, code, "", s.Now().AddDate(0, 0, -30))
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	if len(signals) == 0 {
		return fmt.Sprintf("%s: no signals in the last 30 days", code)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<b>%s</b> last 30 days\n", code))
	for _, sig := range signals {
		b.WriteString(fmt.Sprintf("%s %-4s %s @ %.2f\n", sig.Date.Format(model.DateLayout), sig.Direction, sig.Strategy, sig.Close))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Scheduler) trySend(text string) {
	if s.opts.Notifier == nil {
		return
	}
	if err := s.opts.Notifier.Send(s.Ctx, text); err != nil {
		s.opts.Metrics.NotifyErrors.Inc()
		s.log.Error().Err(err).Msg("send notification")
	}
}
