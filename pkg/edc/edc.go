// Package edc is the external-decision-component shim: the thin boundary
// between the host simulator's raw byte-buffer entry points
// (initialize / take-decisions / teardown) and the typed engine core.
// It only translates; every scheduling rule lives in pkg/engine.
package edc

import (
	"log/slog"

	"github.com/ja7ad/energybud/pkg/energy"
	"github.com/ja7ad/energybud/pkg/engine"
	"github.com/ja7ad/energybud/pkg/metrics"
	"github.com/ja7ad/energybud/pkg/protocol"
)

// Engine identity announced in the handshake reply.
const (
	Name    = "energybud"
	Version = "1.0.0"
)

// EDC is one initialized engine instance behind the wire boundary.
type EDC struct {
	engine *engine.Engine
}

// Init validates the format flags, applies the optional configuration
// payload, and constructs the engine. The payload's budget fraction (and
// the other model parameters) replace what used to be source-edited
// constants between experiment runs.
func Init(payload []byte, flags uint32, logger *slog.Logger) (*EDC, error) {
	if flags&^(protocol.FormatJSON|protocol.FormatBinary) != 0 {
		return nil, protocol.ErrUnknownFormat
	}
	if flags&protocol.FormatBinary != 0 {
		return nil, protocol.ErrBinaryUnsupported
	}

	cfg := engine.Config{Logger: logger}
	if len(payload) > 0 {
		p, err := protocol.DecodeInitPayload(payload)
		if err != nil {
			return nil, err
		}
		cfg.Energy = energy.Config{
			MaxBudget:      p.MaxBudget,
			BudgetFraction: p.BudgetFraction,
			PowerComp:      p.PowerComp,
			PowerIdle:      p.PowerIdle,
			PeriodDuration: p.PeriodDuration,
		}
	}
	return &EDC{engine: engine.New(&cfg)}, nil
}

// TakeDecisions runs one full decision cycle: decode the batch, apply its
// structural events in delivery order, run the scheduling policy at the
// batch timestamp, and encode the decisions.
//
// Decoding happens up front, so a malformed batch fails the call before
// any state is touched; after a successful decode the cycle always runs to
// a consistent decision batch.
func (d *EDC) TakeDecisions(data []byte) ([]byte, error) {
	batch, err := protocol.DecodeBatch(data)
	if err != nil {
		return nil, err
	}
	events, err := batch.DecodeEvents()
	if err != nil {
		return nil, err
	}

	out := protocol.DecisionBatch{Now: batch.Now}
	for _, ev := range events {
		switch e := ev.(type) {
		case protocol.Hello:
			out.Add(protocol.EDCHello{Name: Name, Version: Version})
		case protocol.SimulationBegins:
			d.engine.InitPlatform(e.HostCount)
		case protocol.JobSubmitted:
			job := engine.Job{ID: e.JobID, Hosts: e.Hosts, Walltime: e.Walltime}
			if !d.engine.Submit(job) {
				out.Add(protocol.RejectJob{JobID: e.JobID})
				metrics.JobRejected()
			}
		case protocol.JobCompleted:
			d.engine.Complete(e.JobID)
		}
	}

	for _, l := range d.engine.Schedule(batch.Now) {
		out.Add(protocol.ExecuteJob{JobID: l.Job.ID, Hosts: l.Hosts})
		metrics.JobLaunched(string(l.Phase))
	}

	s := d.engine.Status()
	metrics.ObserveCycle(s.Queued, s.FreeHosts, float64(s.Available), float64(s.Reserved))

	return protocol.EncodeBatch(&out)
}

// Deinit releases the engine-owned state. The instance must not be used
// afterwards.
func (d *EDC) Deinit() error {
	d.engine = nil
	return nil
}
