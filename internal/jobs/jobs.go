// Package jobs runs the bot's periodic maintenance on a cron schedule:
// pruning expired interaction receipts and refreshing the presence gauges.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/hordalan/checkin-bot/internal/repo"
)

// GaugeSchedule is how often the presence gauges are refreshed.
const GaugeSchedule = "@every 1m"

// jobTimeout bounds a single job run.
const jobTimeout = 30 * time.Second

var (
	// presenceUsers gauges tracked users by state (in/out).
	presenceUsers = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "checkin_presence_users",
			Help: "Tracked users by presence state.",
		},
		[]string{"state"},
	)

	// receiptsPruned counts expired interaction receipts removed.
	receiptsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkin_receipts_pruned_total",
			Help: "Total number of expired interaction receipts pruned.",
		},
	)
)

func init() {
	prometheus.MustRegister(presenceUsers, receiptsPruned)
}

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
}

// New registers the receipt prune job on pruneSchedule and the gauge refresh
// on GaugeSchedule. Nothing runs until Start.
func New(db *gorm.DB, pruneSchedule string) (*Scheduler, error) {
	lg := cronLogger{}
	s := &Scheduler{
		db: db,
		cron: cron.New(cron.WithChain(
			cron.Recover(lg),
			cron.SkipIfStillRunning(lg),
		)),
		now: time.Now,
	}
	if _, err := s.cron.AddFunc(pruneSchedule, s.runPrune); err != nil {
		return nil, fmt.Errorf("schedule receipt pruning %q: %w", pruneSchedule, err)
	}
	if _, err := s.cron.AddFunc(GaugeSchedule, s.runGauges); err != nil {
		return nil, fmt.Errorf("schedule presence gauges: %w", err)
	}
	return s, nil
}

// Start refreshes the gauges once and starts the cron runner.
func (s *Scheduler) Start() {
	s.runGauges()
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// PruneReceipts deletes expired receipts once.
func (s *Scheduler) PruneReceipts(ctx context.Context) (int64, error) {
	n, err := repo.PruneReceipts(ctx, s.db, s.now().UTC())
	if err != nil {
		return 0, err
	}
	receiptsPruned.Add(float64(n))
	return n, nil
}

// RefreshGauges recomputes the presence gauges once.
func (s *Scheduler) RefreshGauges(ctx context.Context) error {
	st, err := repo.GetPresenceStats(ctx, s.db)
	if err != nil {
		return err
	}
	presenceUsers.WithLabelValues("in").Set(float64(st.In))
	presenceUsers.WithLabelValues("out").Set(float64(st.Out))
	return nil
}

func (s *Scheduler) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	n, err := s.PruneReceipts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("prune interaction receipts")
		return
	}
	if n > 0 {
		log.Debug().Int64("pruned", n).Msg("expired interaction receipts pruned")
	}
}

func (s *Scheduler) runGauges() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := s.RefreshGauges(ctx); err != nil {
		log.Error().Err(err).Msg("refresh presence gauges")
	}
}

// cronLogger routes cron's internal logging to zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
