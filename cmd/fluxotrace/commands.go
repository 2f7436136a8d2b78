package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/petrijr/fluxotrace"
	"github.com/petrijr/fluxotrace/cmd/fluxotrace/ui"
	"github.com/petrijr/fluxotrace/internal/telemetry"
)

func validateFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want %s, %s or %s)", format, formatText, formatJSON, formatYAML)
	}
}

func replayCmd(a *app) *cobra.Command {
	var (
		frame  int
		format string
	)
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Build the timeline of a history file, optionally at an earlier frame",
		Long: `Build the timeline of a history file.

The file holds a JSON array of history items, or an object with a
"history" array. Use "-" to read from stdin. With --frame N only the first
N events, in file order, are applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			events, err := readEvents(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			r := fluxotrace.NewReplayerWithObserver(events, a.observer)
			if frame < 0 {
				frame = len(events)
			}
			r.Seek(frame)

			return writeReport(cmd.OutOrStdout(), format, report{
				Frame:       r.Frame(),
				Events:      r.Len(),
				Timeline:    r.Timeline(),
				Diagnostics: r.Diagnostics(),
			})
		},
	}
	cmd.Flags().IntVar(&frame, "frame", -1, "Number of events to apply (default all)")
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "Output format: text, json or yaml")
	return cmd
}

func verifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Check that incremental ingestion of a history matches a batch build",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := readEvents(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			if err := fluxotrace.VerifyIncremental(cmd.Context(), events); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("%d split points match the batch build", len(events)+1))
			return nil
		},
	}
}

func importCmd(a *app) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Append a history file to a run in the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := readEvents(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			ctx, span := telemetry.Tracer().Start(cmd.Context(), "fluxotrace.import")
			defer span.End()
			span.SetAttributes(attribute.String("run.id", runID), attribute.Int("events", len(events)))

			p, err := a.openStore(ctx)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			defer p.Close()

			ctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
			defer cancel()
			if err := p.Events.AppendEvents(ctx, runID, events...); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return fmt.Errorf("import into run %s: %w", runID, err)
			}

			slog.Info("history imported", slog.String("run", runID), slog.Int("events", len(events)))
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("imported %d events into run %s", len(events), runID))
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run id to append to")
	_ = cmd.MarkFlagRequired("run")
	return cmd
}

func showCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <run>",
		Short: "Load a run from the configured store and print its timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			runID := args[0]

			ctx, span := telemetry.Tracer().Start(cmd.Context(), "fluxotrace.show")
			defer span.End()
			span.SetAttributes(attribute.String("run.id", runID))

			p, err := a.openStore(ctx)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			defer p.Close()

			ctx, cancel := context.WithTimeout(ctx, a.cfg.StoreTimeout)
			defer cancel()
			events, err := p.Events.ListEvents(ctx, runID)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return fmt.Errorf("load run %s: %w", runID, err)
			}

			b := fluxotrace.NewBuilderWithObserver(a.observer)
			b.AppendAll(events)
			tl := b.Snapshot()
			span.SetAttributes(attribute.String("run.status", string(tl.Status)), attribute.Int("steps", len(tl.Steps)))

			return writeReport(cmd.OutOrStdout(), format, report{
				Run:         runID,
				Frame:       len(events),
				Events:      len(events),
				Timeline:    tl,
				Diagnostics: b.DiagnosticRecords(),
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatText, "Output format: text, json or yaml")
	return cmd
}

func runsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List runs in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.StoreTimeout)
			defer cancel()

			ids, err := p.Events.ListRuns(ctx)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.MutedStyle.Render("no runs"))
				return nil
			}

			rows := make([][]string, 0, len(ids))
			for _, id := range ids {
				tl, _, err := fluxotrace.BuildFromStore(ctx, p.Events, id)
				if err != nil {
					return err
				}
				rows = append(rows, []string{id, ui.Status(tl.Status), fmt.Sprint(len(tl.Steps))})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"RUN", "STATUS", "STEPS"}, rows))
			return nil
		},
	}
}
