package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ja7ad/energybud/pkg/edc"
	"github.com/ja7ad/energybud/pkg/metrics"
	"github.com/ja7ad/energybud/pkg/protocol"
)

type opts struct {
	// budget model
	budgetFraction float64
	maxBudget      float64
	pComp          float64
	pIdle          float64
	period         float64

	// outputs
	csvPath     string
	metricsAddr string
	verbose     bool
}

// outcome is the per-job record accumulated while replaying a trace.
type outcome struct {
	JobID    string
	Hosts    int
	Walltime float64
	SubmitAt float64
	StartAt  float64
	Started  bool
	Rejected bool
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "energybud TRACE",
		Short: "Energy-budget scheduling engine (replay driver)",
		Long: `energybud is the decision engine of an energy-budget-constrained job
scheduler. This driver replays a JSON trace of time-stamped event batches
(the host simulator's side of the protocol) through the engine and reports
the resulting decisions.

A trace is a JSON array of batches:

  [
    {"now": 0, "events": [{"type": "SIMULATION_BEGINS", "data": {"nb_hosts": 4}}]},
    {"now": 0, "events": [{"type": "JOB_SUBMITTED", "data": {"job_id": "j1", "res": 2, "walltime": 100}}]},
    {"now": 100, "events": [{"type": "JOB_COMPLETED", "data": {"job_id": "j1"}}]}
  ]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(o, args[0])
		},
	}

	root.Flags().Float64VarP(&o.budgetFraction, "budget-fraction", "f", 1.0, "fraction of the period budget granted (0..1]")
	root.Flags().Float64Var(&o.maxBudget, "max-budget", 0, "energy budget per period in Wh (0 = engine default)")
	root.Flags().Float64Var(&o.pComp, "p-comp", 0, "computing power per host in W (0 = engine default)")
	root.Flags().Float64Var(&o.pIdle, "p-idle", 0, "idle power per host in W (0 = engine default)")
	root.Flags().Float64Var(&o.period, "period", 0, "budget period in seconds (0 = engine default)")

	root.Flags().StringVar(&o.csvPath, "csv", "", "write per-job outcomes to CSV file")
	root.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :2112)")
	root.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "log every engine decision")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run(o opts, tracePath string) error {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	payload, err := json.Marshal(protocol.InitPayload{
		BudgetFraction: o.budgetFraction,
		MaxBudget:      o.maxBudget,
		PowerComp:      o.pComp,
		PowerIdle:      o.pIdle,
		PeriodDuration: o.period,
	})
	if err != nil {
		return err
	}

	engine, err := edc.Init(payload, protocol.FormatJSON, log)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer engine.Deinit()

	if o.metricsAddr != "" {
		go func() {
			log.Info("serving metrics", "addr", o.metricsAddr)
			if err := http.ListenAndServe(o.metricsAddr, metrics.Handler()); err != nil {
				log.Error("metrics server", "err", err)
			}
		}()
	}

	raw, err := os.ReadFile(tracePath)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	var batches []json.RawMessage
	if err := json.Unmarshal(raw, &batches); err != nil {
		return fmt.Errorf("trace %s: %w", tracePath, err)
	}

	var (
		order    []string
		outcomes = map[string]*outcome{}
	)

	for i, b := range batches {
		batch, err := protocol.DecodeBatch(b)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		events, err := batch.DecodeEvents()
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}
		for _, ev := range events {
			if s, ok := ev.(protocol.JobSubmitted); ok {
				order = append(order, s.JobID)
				outcomes[s.JobID] = &outcome{
					JobID:    s.JobID,
					Hosts:    s.Hosts,
					Walltime: s.Walltime,
					SubmitAt: batch.Now,
				}
			}
		}

		reply, err := engine.TakeDecisions(b)
		if err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}

		var db protocol.DecisionBatch
		if err := json.Unmarshal(reply, &db); err != nil {
			return fmt.Errorf("batch %d reply: %w", i, err)
		}
		applyDecisions(&db, outcomes, log)
	}

	printSummary(order, outcomes)

	if o.csvPath != "" {
		if err := writeCSV(o.csvPath, order, outcomes); err != nil {
			return fmt.Errorf("csv: %w", err)
		}
	}
	return nil
}

func applyDecisions(db *protocol.DecisionBatch, outcomes map[string]*outcome, log *slog.Logger) {
	for _, d := range db.Decisions {
		raw, err := json.Marshal(d.Data)
		if err != nil {
			continue
		}
		switch d.Type {
		case protocol.DecisionExecute:
			var e protocol.ExecuteJob
			if json.Unmarshal(raw, &e) != nil {
				continue
			}
			if oc := outcomes[e.JobID]; oc != nil {
				oc.Started = true
				oc.StartAt = db.Now
			}
			log.Info("execute", "job", e.JobID, "hosts", e.Hosts, "at", db.Now)
		case protocol.DecisionReject:
			var e protocol.RejectJob
			if json.Unmarshal(raw, &e) != nil {
				continue
			}
			if oc := outcomes[e.JobID]; oc != nil {
				oc.Rejected = true
			}
			log.Info("reject", "job", e.JobID, "at", db.Now)
		case protocol.DecisionHello:
			log.Info("handshake acknowledged")
		}
	}
}

func printSummary(order []string, outcomes map[string]*outcome) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tHOSTS\tWALLTIME\tSUBMIT\tSTART\tWAIT\tOUTCOME")
	fmt.Fprintln(tw, "---\t-----\t--------\t------\t-----\t----\t-------")
	for _, id := range order {
		oc := outcomes[id]
		switch {
		case oc.Rejected:
			fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t-\t-\trejected\n",
				oc.JobID, oc.Hosts, oc.Walltime, oc.SubmitAt)
		case oc.Started:
			fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%.1f\t%.1f\tstarted\n",
				oc.JobID, oc.Hosts, oc.Walltime, oc.SubmitAt, oc.StartAt, oc.StartAt-oc.SubmitAt)
		default:
			fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t-\t-\tqueued\n",
				oc.JobID, oc.Hosts, oc.Walltime, oc.SubmitAt)
		}
	}
	tw.Flush()
}

func writeCSV(path string, order []string, outcomes map[string]*outcome) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"job_id", "hosts", "walltime_s", "submit_s", "start_s", "wait_s", "outcome"}); err != nil {
		return err
	}
	for _, id := range order {
		oc := outcomes[id]
		state, start, wait := "queued", "", ""
		if oc.Rejected {
			state = "rejected"
		} else if oc.Started {
			state = "started"
			start = fmtFloat(oc.StartAt)
			wait = fmtFloat(oc.StartAt - oc.SubmitAt)
		}
		err := w.Write([]string{
			oc.JobID,
			strconv.Itoa(oc.Hosts),
			fmtFloat(oc.Walltime),
			fmtFloat(oc.SubmitAt),
			start,
			wait,
			state,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
