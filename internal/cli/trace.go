package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MauricioAndrades/react/internal/harness"
	"github.com/MauricioAndrades/react/internal/journal"
	"github.com/MauricioAndrades/react/internal/sched"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	JournalPath string
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(opts *RootOptions) *cobra.Command {
	traceOpts := &TraceOptions{}

	cmd := &cobra.Command{
		Use:   "trace <scenario.yaml>",
		Short: "Execute a scenario and print its pass trace",
		Long: "Execute a scenario against a real scheduler and print the resulting " +
			"trace of committed passes. With --journal, committed passes are also " +
			"persisted to a SQLite pass journal.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts, traceOpts, args[0])
		},
	}

	cmd.Flags().StringVar(&traceOpts.JournalPath, "journal", "", "SQLite journal path to persist pass records")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *RootOptions, traceOpts *TraceOptions, path string) error {
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	out.VerboseLog("executing scenario %q (%d steps)", s.Name, len(s.Steps))

	result, err := harness.Run(s)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to execute scenario", err)
	}

	if traceOpts.JournalPath != "" {
		if err := persistTrace(cmd.Context(), traceOpts.JournalPath, s.Name, result); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist trace", err)
		}
		out.VerboseLog("trace persisted to %s", traceOpts.JournalPath)
	}

	if opts.Format == "json" {
		if err := out.JSON(result); err != nil {
			return WrapExitError(ExitCommandError, "failed to encode result", err)
		}
	} else {
		printTraceText(out, s, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", s.Name))
	}
	return nil
}

// persistTrace writes the committed passes of a trace to the journal,
// keyed by the same run token the harness used.
func persistTrace(ctx context.Context, path, name string, result *harness.Result) error {
	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer j.Close()

	runToken := "run-" + name
	for _, ev := range result.Trace {
		if ev.Type != "pass" {
			continue
		}
		rec := sched.PassRecord{
			Seq:         ev.Seq,
			RunToken:    runToken,
			Container:   ev.Container,
			Priority:    ev.Priority,
			UpdateCount: ev.Updates,
		}
		if err := j.WritePass(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func printTraceText(out *OutputFormatter, s *harness.Scenario, result *harness.Result) {
	out.Textf("scenario: %s\n", s.Name)
	if s.Description != "" {
		out.Textf("description: %s\n", s.Description)
	}
	out.Textf("\ntrace:\n")
	for _, ev := range result.Trace {
		switch ev.Type {
		case "pass":
			out.Textf("  [%d] pass %s priority=%s updates=%d state=%v\n",
				ev.Seq, ev.Container, ev.Priority, ev.Updates, ev.State)
		case "fire_deferred":
			out.Textf("  --- fire deferred callback\n")
		}
	}
	if len(result.Final) > 0 {
		out.Textf("\nfinal:\n")
		for _, decl := range s.Roots {
			if v, ok := result.Final[decl.Container]; ok {
				out.Textf("  %s: %v\n", decl.Container, v)
			}
		}
	}
	if len(result.Errors) > 0 {
		out.Textf("\nerrors:\n")
		for _, msg := range result.Errors {
			out.Textf("  %s\n", msg)
		}
	}
	if result.Pass {
		out.Textf("\nresult: pass\n")
	} else {
		out.Textf("\nresult: fail\n")
	}
}
