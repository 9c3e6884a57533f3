package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"taskbench/evaluation/results"
	"taskbench/evaluation/verification"
	"taskbench/internal/observability"
)

// errTasksFailed makes the process exit non-zero once the report is printed.
var errTasksFailed = errors.New("one or more tasks failed verification")

func newVerifyCommand(cli *CLI) *cobra.Command {
	var (
		filter string
		runID  string
		noSave bool
	)
	cmd := &cobra.Command{
		Use:   "verify <service>",
		Short: "Run the verification programs of a service's tasks",
		Long: `Run the verification program of every selected task and report PASS/FAIL.

Examples:
  taskbench verify filesystem                     # every filesystem task
  taskbench verify github --filter issues         # one category
  taskbench verify notion -f basic/task_3         # a single task`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			service := args[0]
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			catalog, err := cli.catalog(ctx, service)
			if err != nil {
				return err
			}
			m, _ := catalog.Manager(service)
			tasks := m.Filter(filter)
			if len(tasks) == 0 {
				return fmt.Errorf("no %s tasks match %q", service, filter)
			}

			runner, err := verification.NewRunner(cli.cfg.Verification(), catalog.Backends(),
				verification.WithLogger(cli.component("verification")),
				verification.WithMetrics(verification.DefaultMetrics()),
				verification.WithTracer(cli.tracer.Tracer()),
			)
			if err != nil {
				return err
			}

			started := time.Now()
			if runID == "" {
				runID = results.NewRunID(started)
			}
			ctx, span := cli.tracer.Tracer().Start(ctx, observability.SpanSession,
				trace.WithAttributes(
					attribute.String(observability.AttrRunID, runID),
					attribute.String(observability.AttrService, service),
				))
			defer span.End()

			fmt.Fprintf(cli.out, "%s %s %s\n", bold("Verifying"), cyan(fmt.Sprintf("%d %s tasks", len(tasks), service)), gray(runID))
			outcomes := runner.RunAll(ctx, tasks, cli.cfg.Concurrency)
			for _, o := range outcomes {
				printOutcome(cli.out, o)
			}

			summary := results.Summarize(runID, service, outcomes)
			summary.StartedAt = started
			summary.FinishedAt = time.Now()
			if !noSave {
				store, err := results.NewStore(cli.cfg.OutputDir)
				if err != nil {
					return err
				}
				saved, err := store.SaveRun(runID, service, started, outcomes)
				if err != nil {
					return fmt.Errorf("save results: %w", err)
				}
				summary = *saved
			}
			printSummary(cli.out, summary)

			if summary.Passed != summary.Total {
				return errTasksFailed
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Category, category/task_id or substring")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (generated when empty)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not write results to the output directory")
	return cmd
}
