// Package retention prunes aged telemetry so the SQLite file stays bounded
// on long-running deployments. Readings, generation logs, anomalies and
// expected values older than the configured max age are deleted on a cron
// schedule.
package retention

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/waterline-io/waterline/internal/simclock"
	"github.com/waterline-io/waterline/internal/store"
)

// DefaultSchedule runs the sweep hourly.
const DefaultSchedule = "0 * * * *"

// Sweeper deletes rows older than MaxAge on each scheduled run.
type Sweeper struct {
	store  *store.Store
	clock  simclock.Clock
	maxAge time.Duration

	cron    *cron.Cron
	entryID cron.EntryID
}

// New builds a sweeper on the given schedule. An unparsable schedule falls
// back to DefaultSchedule with a warning. A nil clock means the system
// clock; maxAge <= 0 disables the sweep entirely.
func New(s *store.Store, clock simclock.Clock, schedule string, maxAge time.Duration) *Sweeper {
	if clock == nil {
		clock = simclock.System{}
	}
	sw := &Sweeper{
		store:  s,
		clock:  clock,
		maxAge: maxAge,
		cron:   cron.New(),
	}
	if maxAge <= 0 {
		return sw
	}

	if schedule == "" {
		schedule = DefaultSchedule
	}
	entryID, err := sw.cron.AddFunc(schedule, sw.Sweep)
	if err != nil {
		log.Printf("[retention] invalid cron expression %q: %v, using %q", schedule, err, DefaultSchedule)
		entryID, _ = sw.cron.AddFunc(DefaultSchedule, sw.Sweep)
	}
	sw.entryID = entryID
	return sw
}

// Start launches the scheduler.
func (sw *Sweeper) Start() {
	if sw.maxAge <= 0 {
		log.Printf("[retention] disabled (max age not set)")
		return
	}
	sw.cron.Start()
	log.Printf("[retention] started max_age=%s", sw.maxAge)
}

// Stop halts the scheduler; a run already in flight finishes.
func (sw *Sweeper) Stop() {
	sw.cron.Stop()
}

// Sweep deletes everything older than the cutoff across all networks.
// Per-table errors are logged; the scheduler keeps running.
func (sw *Sweeper) Sweep() {
	cutoffNs := sw.clock.Now().Add(-sw.maxAge).UnixNano()

	tables := []struct {
		name string
		del  func(int64) (int64, error)
	}{
		{"scada_readings", sw.store.DeleteReadingsBefore},
		{"scada_generation_logs", sw.store.DeleteGenerationLogsBefore},
		{"anomalies", sw.store.DeleteAnomaliesBefore},
		{"expected_values", sw.store.DeleteExpectedValuesBefore},
	}
	for _, tbl := range tables {
		n, err := tbl.del(cutoffNs)
		if err != nil {
			log.Printf("[retention] warning: prune %s: %v", tbl.name, err)
			continue
		}
		if n > 0 {
			log.Printf("[retention] pruned %s rows=%d", tbl.name, n)
		}
	}
}
