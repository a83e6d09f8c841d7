package edc

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/ja7ad/energybud/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decisions(t *testing.T, out []byte) *protocol.DecisionBatch {
	t.Helper()
	var d protocol.DecisionBatch
	require.NoError(t, json.Unmarshal(out, &d))
	return &d
}

func kinds(d *protocol.DecisionBatch) []string {
	out := make([]string, 0, len(d.Decisions))
	for _, dec := range d.Decisions {
		out = append(out, dec.Type)
	}
	return out
}

func TestInit_FlagValidation(t *testing.T) {
	_, err := Init(nil, protocol.FormatJSON, nil)
	require.NoError(t, err)

	_, err = Init(nil, protocol.FormatBinary, nil)
	require.ErrorIs(t, err, protocol.ErrBinaryUnsupported)

	_, err = Init(nil, 1<<7, nil)
	require.ErrorIs(t, err, protocol.ErrUnknownFormat)

	_, err = Init([]byte(`{broken`), protocol.FormatJSON, nil)
	require.Error(t, err)
}

func TestTakeDecisions_HandshakeAndLifecycle(t *testing.T) {
	d, err := Init([]byte(`{"budget_fraction": 1.0}`), protocol.FormatJSON, nil)
	require.NoError(t, err)

	out, err := d.TakeDecisions([]byte(`{
		"now": 0,
		"events": [
			{"type": "HELLO"},
			{"type": "SIMULATION_BEGINS", "data": {"nb_hosts": 4}}
		]
	}`))
	require.NoError(t, err)

	got := decisions(t, out)
	require.Equal(t, []string{"EDC_HELLO"}, kinds(got))

	var hello protocol.EDCHello
	raw, err := json.Marshal(got.Decisions[0].Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &hello))
	assert.Equal(t, Name, hello.Name)
	assert.Equal(t, Version, hello.Version)

	require.NoError(t, d.Deinit())
}

func TestTakeDecisions_RejectAndExecute(t *testing.T) {
	d, err := Init(nil, protocol.FormatJSON, nil)
	require.NoError(t, err)

	_, err = d.TakeDecisions([]byte(`{
		"now": 0,
		"events": [{"type": "SIMULATION_BEGINS", "data": {"nb_hosts": 4}}]
	}`))
	require.NoError(t, err)

	// oversize job rejected, feasible jobs granted in the same batch
	out, err := d.TakeDecisions([]byte(`{
		"now": 1,
		"events": [
			{"type": "JOB_SUBMITTED", "data": {"job_id": "huge", "res": 5, "walltime": 10}},
			{"type": "JOB_SUBMITTED", "data": {"job_id": "a", "res": 2, "walltime": 100}},
			{"type": "JOB_SUBMITTED", "data": {"job_id": "b", "res": 2, "walltime": 100}}
		]
	}`))
	require.NoError(t, err)

	got := decisions(t, out)
	require.Equal(t, []string{"REJECT_JOB", "EXECUTE_JOB", "EXECUTE_JOB"}, kinds(got))

	var exec protocol.ExecuteJob
	raw, _ := json.Marshal(got.Decisions[1].Data)
	require.NoError(t, json.Unmarshal(raw, &exec))
	assert.Equal(t, "a", exec.JobID)
	assert.Equal(t, []int{0, 1}, exec.Hosts)
}

func TestTakeDecisions_CompletionFreesHosts(t *testing.T) {
	d, err := Init(nil, protocol.FormatJSON, nil)
	require.NoError(t, err)

	_, err = d.TakeDecisions([]byte(`{
		"now": 0,
		"events": [{"type": "SIMULATION_BEGINS", "data": {"nb_hosts": 1}}]
	}`))
	require.NoError(t, err)

	out, err := d.TakeDecisions([]byte(`{
		"now": 0,
		"events": [
			{"type": "JOB_SUBMITTED", "data": {"job_id": "A", "res": 1, "walltime": 500}},
			{"type": "JOB_SUBMITTED", "data": {"job_id": "B", "res": 1, "walltime": 100}}
		]
	}`))
	require.NoError(t, err)
	require.Equal(t, []string{"EXECUTE_JOB"}, kinds(decisions(t, out)))

	// B launches in the cycle that delivers A's completion
	out, err = d.TakeDecisions([]byte(`{
		"now": 500,
		"events": [{"type": "JOB_COMPLETED", "data": {"job_id": "A"}}]
	}`))
	require.NoError(t, err)

	got := decisions(t, out)
	require.Equal(t, []string{"EXECUTE_JOB"}, kinds(got))
	var exec protocol.ExecuteJob
	raw, _ := json.Marshal(got.Decisions[0].Data)
	require.NoError(t, json.Unmarshal(raw, &exec))
	assert.Equal(t, "B", exec.JobID)
}

func TestTakeDecisions_MalformedBatchFailsBeforeStateChange(t *testing.T) {
	d, err := Init(nil, protocol.FormatJSON, nil)
	require.NoError(t, err)

	_, err = d.TakeDecisions([]byte(`{
		"now": 0,
		"events": [{"type": "SIMULATION_BEGINS", "data": {"nb_hosts": 2}}]
	}`))
	require.NoError(t, err)

	// one broken payload fails the whole call; the good submission in the
	// same batch must not have been applied
	_, err = d.TakeDecisions([]byte(`{
		"now": 1,
		"events": [
			{"type": "JOB_SUBMITTED", "data": {"job_id": "ok", "res": 1, "walltime": 10}},
			{"type": "JOB_SUBMITTED", "data": {"job_id": "bad", "res": "x"}}
		]
	}`))
	require.Error(t, err)

	out, err := d.TakeDecisions([]byte(`{"now": 2, "events": []}`))
	require.NoError(t, err)
	assert.Empty(t, decisions(t, out).Decisions)
}

func TestTakeDecisions_UnknownEventIgnored(t *testing.T) {
	d, err := Init(nil, protocol.FormatJSON, nil)
	require.NoError(t, err)

	out, err := d.TakeDecisions([]byte(`{
		"now": 0,
		"events": [{"type": "CARBON_SIGNAL", "data": {"g_per_kwh": 120}}]
	}`))
	require.NoError(t, err)
	assert.Empty(t, decisions(t, out).Decisions)
}

func TestTakeDecisions_BudgetParametersBindLaunches(t *testing.T) {
	// The init payload decides whether the same workload launches or has
	// to wait for the trickle; no recompile between experiment points.
	launchCount := func(payload string) int {
		d, err := Init([]byte(payload), protocol.FormatJSON, nil)
		require.NoError(t, err)

		_, err = d.TakeDecisions([]byte(`{
			"now": 0,
			"events": [{"type": "SIMULATION_BEGINS", "data": {"nb_hosts": 2}}]
		}`))
		require.NoError(t, err)

		// estimate(1 host, 5s) = 1 * 3600 W * 5 s / 3600 = 5 Wh
		out, err := d.TakeDecisions([]byte(`{
			"now": 1,
			"events": [{"type": "JOB_SUBMITTED", "data": {"job_id": "j", "res": 1, "walltime": 5}}]
		}`))
		require.NoError(t, err)
		return len(decisions(t, out).Decisions)
	}

	// starved: rate*walltime = 10*0.001/600 * 5 Wh, far below 5 Wh
	starved := fmt.Sprintf(
		`{"budget_fraction": %g, "max_budget_wh": 10, "period_s": 600, "power_comp_w": 3600, "power_idle_w": 1}`,
		0.001)
	assert.Equal(t, 0, launchCount(starved))

	// roomy: one second of trickle already banks ~1667 Wh
	roomy := `{"max_budget_wh": 1e6, "period_s": 600, "power_comp_w": 3600, "power_idle_w": 1}`
	assert.Equal(t, 1, launchCount(roomy))
}
