package engine

// Job is one submitted workload. Jobs are value records keyed by their
// stable identifier; the queue, the running set, and the reservation all
// reference the id, never the record itself.
type Job struct {
	ID       string
	Hosts    int     // host count requested
	Walltime float64 // requested walltime, seconds
}

// Launch is one granted allocation produced by a scheduling cycle.
type Launch struct {
	Job   Job
	Hosts []int // ordered host ids granted
	Phase Phase
}

// Phase identifies which step of the scheduling cycle granted a launch.
type Phase string

const (
	// PhaseDirect is the order-independent full-queue sweep.
	PhaseDirect Phase = "direct"
	// PhaseReserved is a head job launched the instant its reservation
	// was created.
	PhaseReserved Phase = "reserved"
	// PhaseBackfill is a launch from the conservative-backfill sweep.
	PhaseBackfill Phase = "backfill"
)
