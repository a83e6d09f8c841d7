// Package engine implements the decision core of the energy-budget
// scheduler: a FIFO job queue, a host pool, and a budget ledger, combined
// by a three-phase policy (direct launch, head reservation, conservative
// backfill) run once per decision cycle.
//
// The engine owns no clock and no I/O. The host simulator applies
// structural events through Submit/Complete/InitPlatform, then calls
// Schedule with the batch timestamp; everything in between is synchronous
// and single-threaded.
package engine

import (
	"io"
	"log/slog"

	"github.com/ja7ad/energybud/pkg/energy"
	"github.com/ja7ad/energybud/pkg/platform"
	"github.com/ja7ad/energybud/pkg/types"
)

// Config configures one engine instance.
type Config struct {
	// Energy holds the budget and power model parameters; zero fields are
	// defaulted by the ledger.
	Energy energy.Config
	// Logger receives per-cycle decision logs. Nil disables logging.
	Logger *slog.Logger
}

// Engine is the scheduler state machine. All mutable state is owned by the
// instance and mutated only through its methods.
type Engine struct {
	log    *slog.Logger
	pool   *platform.Pool
	ledger *energy.Ledger

	queue   []string       // submission order
	queued  map[string]Job // jobs awaiting a decision, by id
	running map[string]Job
	allocs  map[string][]int
}

// New creates an engine. The platform is empty until InitPlatform is
// called with the host count from the simulator.
func New(cfg *Config) *Engine {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	log := c.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		log:     log,
		pool:    platform.NewPool(0),
		ledger:  energy.New(&c.Energy),
		queued:  make(map[string]Job),
		running: make(map[string]Job),
		allocs:  make(map[string][]int),
	}
}

// InitPlatform sets the platform host count and marks all hosts free.
func (e *Engine) InitPlatform(hosts int) {
	e.pool.Init(hosts)
	e.log.Info("platform initialized", "hosts", hosts)
}

// Submit admits a job to the queue. It returns false when the job's host
// demand exceeds platform capacity; such a request can never become
// feasible and the job must be rejected outright.
func (e *Engine) Submit(j Job) bool {
	if j.Hosts > e.pool.Hosts() {
		e.log.Info("rejecting job", "job", j.ID, "hosts", j.Hosts, "platform", e.pool.Hosts())
		return false
	}
	e.queued[j.ID] = j
	e.queue = append(e.queue, j.ID)
	return true
}

// Complete releases a finished job's hosts and drops it from the running
// records. If the job held the reservation the promise is moot and is
// cleared. Unknown ids are ignored.
func (e *Engine) Complete(jobID string) {
	j, ok := e.running[jobID]
	if !ok {
		return
	}
	e.pool.Release(e.allocs[jobID])
	delete(e.running, jobID)
	delete(e.allocs, jobID)
	e.log.Info("job completed", "job", jobID, "freed", j.Hosts)

	if e.ledger.ReservedFor(jobID) {
		e.cancelReservation()
	}
}

// Schedule advances the ledger to now and runs the three-phase policy,
// returning the launches granted this cycle. It must be called exactly
// once per event batch, after all of the batch's structural events have
// been applied.
//
// The direct-launch sweep is order-independent across the whole queue: a
// job further back launches ahead of an earlier job that does not
// currently fit. This maximizes utilization and is unbounded: nothing
// stops small jobs from repeatedly overtaking a large one; only the head
// reservation protects a single waiting job.
func (e *Engine) Schedule(now float64) []Launch {
	e.ledger.Advance(now, e.pool.BusyCount(), e.pool.FreeCount())

	var launches []Launch

	// Phase 1: launch everything that fits right now, the holder of a
	// reservation from an earlier cycle included.
	launches = e.sweep(now, PhaseDirect, false, launches)

	// Phase 2: promise the head its energy and a start window. If the
	// head fits at this same instant the promise is honored immediately.
	if len(e.queue) > 0 {
		if _, active := e.ledger.Reservation(); !active {
			head := e.queued[e.queue[0]]
			r := e.ledger.Reserve(head.ID, head.Hosts, head.Walltime, now)
			e.log.Info("reserved for job", "job", head.ID,
				"energy", types.WattHours(r.Energy), "until", r.End)
			if l, ok := e.tryLaunch(head, now, PhaseReserved); ok {
				e.dequeue(head.ID)
				launches = append(launches, l)
			}
		}
	}

	// Phase 3: conservative backfill behind the reservation created above,
	// the holder itself excluded.
	launches = e.sweep(now, PhaseBackfill, true, launches)

	s := e.Status()
	e.log.Debug("cycle status",
		"now", now,
		"queued", s.Queued,
		"running", s.Running,
		"free_hosts", s.FreeHosts,
		"hosts", s.TotalHosts,
		"available", s.Available,
		"budget", s.Budget,
		"reserved", s.Reserved,
	)
	return launches
}

// sweep walks the queue in order and launches every job that is currently
// launchable. skipHolder excludes the reservation holder from the sweep.
func (e *Engine) sweep(now float64, phase Phase, skipHolder bool, launches []Launch) []Launch {
	rest := make([]string, 0, len(e.queue))
	for _, id := range e.queue {
		j := e.queued[id]
		if skipHolder && e.ledger.ReservedFor(id) {
			rest = append(rest, id)
			continue
		}
		l, ok := e.tryLaunch(j, now, phase)
		if !ok {
			rest = append(rest, id)
			continue
		}
		delete(e.queued, id)
		launches = append(launches, l)
	}
	e.queue = rest
	return launches
}

// tryLaunch launches j if it fits the free-host count, passes energy
// admission, and, unless it is the reservation holder, completes before
// the reserved window ends. On launch the job's hosts are
// allocated, its estimated energy debited, and a holder's own reservation
// cleared (the promise is fulfilled by the launch itself).
func (e *Engine) tryLaunch(j Job, now float64, phase Phase) (Launch, bool) {
	holder := e.ledger.ReservedFor(j.ID)
	if !e.pool.Fits(j.Hosts) {
		return Launch{}, false
	}
	if !e.ledger.Admits(j.ID, j.Hosts, j.Walltime) {
		return Launch{}, false
	}
	if !holder && !e.ledger.AllowsBackfill(now, j.Walltime) {
		return Launch{}, false
	}

	hosts, err := e.pool.Allocate(j.Hosts)
	if err != nil {
		// cannot happen after the Fits check; kept as a guard
		return Launch{}, false
	}
	e.ledger.Debit(j.Hosts, j.Walltime)
	if holder {
		e.ledger.Cancel()
	}

	e.running[j.ID] = j
	e.allocs[j.ID] = hosts

	e.log.Info("launching job",
		"job", j.ID,
		"hosts", hosts,
		"energy", types.WattHours(e.ledger.Estimate(j.Hosts, j.Walltime)),
		"phase", phase,
	)
	return Launch{Job: j, Hosts: hosts, Phase: phase}, true
}

// dequeue removes id from the queue and the queued records.
func (e *Engine) dequeue(id string) {
	delete(e.queued, id)
	for i, q := range e.queue {
		if q == id {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return
		}
	}
}

func (e *Engine) cancelReservation() {
	if r, ok := e.ledger.Reservation(); ok {
		e.log.Info("canceling reservation", "job", r.JobID, "energy", types.WattHours(r.Energy))
		e.ledger.Cancel()
	}
}

// Status is a point-in-time snapshot of the engine's state, for logging
// and metrics.
type Status struct {
	Queued     int
	Running    int
	FreeHosts  int
	TotalHosts int
	Available  types.WattHours
	Budget     types.WattHours
	Consumed   types.WattHours
	Reserved   types.WattHours
}

// Status returns a snapshot of the current engine state.
func (e *Engine) Status() Status {
	return Status{
		Queued:     len(e.queue),
		Running:    len(e.running),
		FreeHosts:  e.pool.FreeCount(),
		TotalHosts: e.pool.Hosts(),
		Available:  types.WattHours(e.ledger.Available()),
		Budget:     types.WattHours(e.ledger.Budget()),
		Consumed:   types.WattHours(e.ledger.Consumed()),
		Reserved:   types.WattHours(e.ledger.ReservedEnergy()),
	}
}
