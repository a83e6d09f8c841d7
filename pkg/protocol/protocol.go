// Package protocol implements the wire boundary between the host simulator
// and the engine: a JSON rendition of the simulator's event batches and of
// the decision batches sent back. It is pure translation; no scheduling
// state lives here.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Format flags accepted at initialization, mirroring the host simulator's
// framing flags.
const (
	FormatJSON   uint32 = 1 << 0
	FormatBinary uint32 = 1 << 1
)

// Event kinds consumed from the simulator. Unrecognized kinds are ignored
// as a forward-compatible no-op.
const (
	EventHello            = "HELLO"
	EventSimulationBegins = "SIMULATION_BEGINS"
	EventJobSubmitted     = "JOB_SUBMITTED"
	EventJobCompleted     = "JOB_COMPLETED"
)

// Decision kinds produced for the simulator.
const (
	DecisionHello   = "EDC_HELLO"
	DecisionExecute = "EXECUTE_JOB"
	DecisionReject  = "REJECT_JOB"
)

// Event is one raw event inside a batch; Data holds the kind-specific
// payload.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Batch is one time-stamped event batch from the simulator. All events in
// a batch share the batch timestamp.
type Batch struct {
	Now    float64 `json:"now"`
	Events []Event `json:"events"`
}

// Hello is the simulator's handshake. It carries no payload.
type Hello struct{}

// SimulationBegins announces the platform.
type SimulationBegins struct {
	HostCount int `json:"nb_hosts"`
}

// JobSubmitted announces a new job.
type JobSubmitted struct {
	JobID    string  `json:"job_id"`
	Hosts    int     `json:"res"`
	Walltime float64 `json:"walltime"`
}

// JobCompleted announces a finished job.
type JobCompleted struct {
	JobID string `json:"job_id"`
}

// DecodeBatch parses a serialized event batch.
func DecodeBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("protocol: decode batch: %w", err)
	}
	return &b, nil
}

// DecodeEvents decodes every recognized event payload in the batch,
// preserving delivery order. Unrecognized kinds are dropped. A malformed
// payload on a recognized kind fails the whole batch, so callers never see
// a partially decoded batch.
func (b *Batch) DecodeEvents() ([]any, error) {
	out := make([]any, 0, len(b.Events))
	for i, ev := range b.Events {
		switch ev.Type {
		case EventHello:
			out = append(out, Hello{})
		case EventSimulationBegins:
			var e SimulationBegins
			if err := json.Unmarshal(ev.Data, &e); err != nil {
				return nil, fmt.Errorf("protocol: event %d (%s): %w", i, ev.Type, err)
			}
			out = append(out, e)
		case EventJobSubmitted:
			var e JobSubmitted
			if err := json.Unmarshal(ev.Data, &e); err != nil {
				return nil, fmt.Errorf("protocol: event %d (%s): %w", i, ev.Type, err)
			}
			out = append(out, e)
		case EventJobCompleted:
			var e JobCompleted
			if err := json.Unmarshal(ev.Data, &e); err != nil {
				return nil, fmt.Errorf("protocol: event %d (%s): %w", i, ev.Type, err)
			}
			out = append(out, e)
		default:
			// forward-compatible no-op
		}
	}
	return out, nil
}

// Decision is one outgoing decision; Data holds the kind-specific payload.
type Decision struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// EDCHello identifies the engine to the simulator.
type EDCHello struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ExecuteJob grants a job its host allocation.
type ExecuteJob struct {
	JobID string `json:"job_id"`
	Hosts []int  `json:"alloc"`
}

// RejectJob permanently rejects a job.
type RejectJob struct {
	JobID string `json:"job_id"`
}

// DecisionBatch is the engine's reply to one event batch.
type DecisionBatch struct {
	Now       float64    `json:"now"`
	Decisions []Decision `json:"events"`
}

// Add appends a decision of the matching kind for the payload.
func (d *DecisionBatch) Add(payload any) {
	var kind string
	switch payload.(type) {
	case EDCHello:
		kind = DecisionHello
	case ExecuteJob:
		kind = DecisionExecute
	case RejectJob:
		kind = DecisionReject
	default:
		return
	}
	d.Decisions = append(d.Decisions, Decision{Type: kind, Data: payload})
}

// EncodeBatch serializes a decision batch.
func EncodeBatch(d *DecisionBatch) ([]byte, error) {
	out, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode batch: %w", err)
	}
	return out, nil
}

// InitPayload is the optional configuration blob passed at initialization.
// It carries the experiment parameters that used to be compile-time
// constants; zero fields keep the engine defaults.
type InitPayload struct {
	BudgetFraction float64 `json:"budget_fraction,omitempty"`
	MaxBudget      float64 `json:"max_budget_wh,omitempty"`
	PowerComp      float64 `json:"power_comp_w,omitempty"`
	PowerIdle      float64 `json:"power_idle_w,omitempty"`
	PeriodDuration float64 `json:"period_s,omitempty"`
}

// DecodeInitPayload parses the initialization payload.
func DecodeInitPayload(data []byte) (*InitPayload, error) {
	var p InitPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("protocol: decode init payload: %w", err)
	}
	return &p, nil
}
