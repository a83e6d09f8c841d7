// Package energy implements the budget side of the scheduler: a ledger that
// releases a fixed energy allotment at a constant rate over a repeating
// period, charges the platform's estimated draw against it, and answers
// admission questions for jobs, including the single energy reservation that
// protects the queue head.
package energy

// Reservation is a promise of energy and a time horizon earmarked for one
// specific queued job until it launches or the promise is cancelled.
type Reservation struct {
	JobID  string
	Energy float64 // Wh
	End    float64 // absolute simulated time, seconds
}

// Ledger tracks budget replenishment, consumption, and the live
// available-energy pool. It is exclusively owned by one engine instance;
// all times are simulated seconds supplied by the caller.
type Ledger struct {
	cfg    *Config
	budget float64 // Wh granted per period (MaxBudget * BudgetFraction)

	consumed  float64 // Wh, monotonic
	available float64 // Wh, floored at zero

	started     bool
	periodStart float64
	lastUpdate  float64

	res *Reservation
}

// New creates a ledger with the given config. Fields > 0 (or valid ranges)
// in cfg override defaults; BudgetFraction accepts (0..1] and defaults to 1.
func New(cfg *Config) *Ledger {
	base := _defaultConfig()

	if cfg != nil {
		merged := *base
		if cfg.MaxBudget > 0 {
			merged.MaxBudget = cfg.MaxBudget
		}
		if cfg.BudgetFraction > 0 && cfg.BudgetFraction <= 1 {
			merged.BudgetFraction = cfg.BudgetFraction
		}
		if cfg.PowerComp > 0 {
			merged.PowerComp = cfg.PowerComp
		}
		if cfg.PowerIdle > 0 {
			merged.PowerIdle = cfg.PowerIdle
		}
		if cfg.PeriodDuration > 0 {
			merged.PeriodDuration = cfg.PeriodDuration
		}
		base = &merged
	}

	return &Ledger{
		cfg:    base,
		budget: base.MaxBudget * base.BudgetFraction,
	}
}

// Rate returns the replenishment rate in Wh per simulated second.
func (l *Ledger) Rate() float64 { return l.budget / l.cfg.PeriodDuration }

// Budget returns the per-period energy grant in Wh.
func (l *Ledger) Budget() float64 { return l.budget }

// Available returns the live available pool in Wh.
func (l *Ledger) Available() float64 { return l.available }

// Consumed returns the cumulative estimated consumption in Wh.
func (l *Ledger) Consumed() float64 { return l.consumed }

// Advance moves the ledger's clock to now, releasing budget at the linear
// trickle rate and charging the platform's estimated draw for the elapsed
// window. active and idle are the host counts of the current
// occupied/free split.
//
// The first call only records now as the period start and performs no
// accounting. Calls with a timestamp at or before the last update are
// no-ops, which makes Advance idempotent per batch timestamp.
func (l *Ledger) Advance(now float64, active, idle int) {
	if !l.started {
		l.started = true
		l.periodStart = now
		l.lastUpdate = now
		return
	}

	elapsed := now - l.lastUpdate
	if elapsed <= 0 {
		return
	}

	l.available += l.Rate() * elapsed

	power := float64(active)*l.cfg.PowerComp + float64(idle)*l.cfg.PowerIdle
	drawn := power * elapsed / 3600.0
	l.consumed += drawn
	l.available -= drawn
	if l.available < 0 {
		l.available = 0
	}

	l.lastUpdate = now
}

// Estimate returns the full-power, full-duration energy cost of a job in
// Wh. Deliberately conservative: every requested host is priced at
// computing power for the whole requested walltime.
func (l *Ledger) Estimate(hosts int, walltime float64) float64 {
	return float64(hosts) * l.cfg.PowerComp * walltime / 3600.0
}

// Admits reports whether the job identified by jobID may start drawing on
// the pool now. Energy pledged to a reservation held by another job is
// invisible here. The replenishment expected over the job's own walltime is
// credited, so a job can start slightly ahead of having the full amount
// banked.
func (l *Ledger) Admits(jobID string, hosts int, walltime float64) bool {
	reservable := l.available
	if l.res != nil && l.res.JobID != jobID {
		reservable -= l.res.Energy
	}

	required := l.Estimate(hosts, walltime)
	projected := reservable + l.Rate()*walltime
	return required <= projected && reservable >= 0
}

// Debit charges a job's estimated energy against the available pool.
// Called exactly once, at launch.
func (l *Ledger) Debit(hosts int, walltime float64) {
	l.available -= l.Estimate(hosts, walltime)
	if l.available < 0 {
		l.available = 0
	}
}

// Reserve earmarks a job's estimated energy and a time horizon of
// now+walltime for it. At most one reservation exists; Reserve must not be
// called while another is active.
func (l *Ledger) Reserve(jobID string, hosts int, walltime, now float64) Reservation {
	r := Reservation{
		JobID:  jobID,
		Energy: l.Estimate(hosts, walltime),
		End:    now + walltime,
	}
	l.res = &r
	return r
}

// Reservation returns the active reservation, if any.
func (l *Ledger) Reservation() (Reservation, bool) {
	if l.res == nil {
		return Reservation{}, false
	}
	return *l.res, true
}

// ReservedFor reports whether jobID holds the active reservation.
func (l *Ledger) ReservedFor(jobID string) bool {
	return l.res != nil && l.res.JobID == jobID
}

// ReservedEnergy returns the energy pledged to the active reservation, or
// zero when none is active.
func (l *Ledger) ReservedEnergy() float64 {
	if l.res == nil {
		return 0
	}
	return l.res.Energy
}

// Cancel clears the active reservation, if any.
func (l *Ledger) Cancel() {
	l.res = nil
}

// AllowsBackfill reports whether a job of the given walltime started at now
// would complete before the reserved job's promised window ends. With no
// active reservation there is nothing to protect and any job may start.
func (l *Ledger) AllowsBackfill(now, walltime float64) bool {
	return l.res == nil || now+walltime <= l.res.End
}
