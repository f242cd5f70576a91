// Package maintenance schedules the periodic background job that
// keeps a running checkpointer healthy, a chain-cleanup sweep, and at
// shutdown flushes the database overlay when one is in use. Grounded
// on internal/taskManager/taskManager.go's gocron.Scheduler bootstrap
// and its Register*Service-per-file convention, adapted from a fleet
// of HPC-job housekeeping jobs to the one periodic job this domain
// needs.
package maintenance

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/sparcians/map-checkpoint/pkg/log"
)

// Sweeper is the subset of checkpointer.Checkpointer the cleanup job
// needs.
type Sweeper interface {
	Sweep()
}

// Flusher is the subset of ckptdb.DatabaseBackend the shutdown hook
// needs; Close both flushes pending windows and stops accepting new
// work, so it is only ever called once, at shutdown.
type Flusher interface {
	Close() error
}

// Maintainer owns the gocron scheduler registered jobs run on.
type Maintainer struct {
	sched gocron.Scheduler
}

// Start creates and starts the scheduler, registering a periodic
// chain-cleanup sweep.
func Start(ckpt Sweeper, cleanupInterval time.Duration) (*Maintainer, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	m := &Maintainer{sched: sched}
	m.registerChainCleanup(ckpt, cleanupInterval)
	sched.Start()
	return m, nil
}

func (m *Maintainer) registerChainCleanup(ckpt Sweeper, interval time.Duration) {
	log.Infof("maintenance: registering chain-cleanup sweep every %s", interval)
	m.sched.NewJob(gocron.DurationJob(interval), gocron.NewTask(func() {
		start := time.Now()
		ckpt.Sweep()
		log.Debugf("maintenance: chain-cleanup sweep took %s", time.Since(start))
	}))
}

// Shutdown stops the scheduler and, if given a database overlay,
// flushes its pending windows. db may be nil if no database overlay
// is in use.
func (m *Maintainer) Shutdown(db Flusher) error {
	if err := m.sched.Shutdown(); err != nil {
		log.Warnf("maintenance: scheduler shutdown error: %v", err)
	}
	if db == nil {
		return nil
	}
	return db.Close()
}
