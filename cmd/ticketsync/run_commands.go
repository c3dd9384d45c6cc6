package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ticketsync/internal/ledger"
	"ticketsync/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var ids []int64
	var limit int
	var stages []string
	var drainOnly bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the producer and every stage pool until the ledger is drained",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := parseStages(stages)
			if err != nil {
				return err
			}
			opts := pipeline.Options{
				TicketIDs:    ids,
				Limit:        limit,
				SkipProducer: drainOnly,
				Stages:       selected,
			}
			return ctx.withComponents(cmd, func(runCtx context.Context, c *pipeline.Components) error {
				report, err := pipeline.Run(runCtx, c, opts)
				if jsonOut {
					if encodeErr := writeJSON(cmd, report); encodeErr != nil {
						return encodeErr
					}
				} else {
					fmt.Fprint(cmd.OutOrStdout(), renderRunReport(report))
				}
				return err
			})
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "Ticket ids to produce instead of the configured source")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of ticket ids to produce (0 = source.limit)")
	cmd.Flags().StringSliceVar(&stages, "stage", nil, "Stages to run (default all)")
	cmd.Flags().BoolVar(&drainOnly, "no-producer", false, "Only drain tickets already in the ledger")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run report as JSON")
	return cmd
}

func newProduceCommand(ctx *commandContext) *cobra.Command {
	var ids []int64
	var limit int

	cmd := &cobra.Command{
		Use:   "produce",
		Short: "Fetch tickets and append them to the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd, func(runCtx context.Context, c *pipeline.Components) error {
				result, err := pipeline.Produce(runCtx, c, pipeline.Options{TicketIDs: ids, Limit: limit})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Listed %d tickets: %d added, %d already in ledger, %d failed (%s)\n",
					result.Listed, result.Added, result.Skipped, result.Failed, formatElapsed(result.Duration))
				return nil
			})
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "Ticket ids to produce instead of the configured source")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of ticket ids to produce (0 = source.limit)")
	return cmd
}

func newConsumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "consume <stage>",
		Short:     "Run one stage's worker pool until no work is left",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			stg, err := ledger.ParseStage(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(runCtx context.Context, c *pipeline.Components) error {
				counts, err := pipeline.Consume(runCtx, c, stg)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d claimed, %d done, %d empty, %d failed, %d finalized\n",
					stageTitle(stg), counts.Claimed, counts.Done, counts.Empty, counts.Failed, counts.Finalized)
				return err
			})
		},
	}
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "finalize <stage>",
		Short:     "Resolve claims left in progress by a stopped worker",
		Args:      cobra.ExactArgs(1),
		ValidArgs: stageNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			stg, err := ledger.ParseStage(args[0])
			if err != nil {
				return err
			}
			return ctx.withComponents(cmd, func(runCtx context.Context, c *pipeline.Components) error {
				updated, err := pipeline.Finalize(runCtx, c, stg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: resolved %s\n", stageTitle(stg), pluralize(updated, "claim"))
				return nil
			})
		},
	}
}

func parseStages(values []string) ([]ledger.Stage, error) {
	stages := make([]ledger.Stage, 0, len(values))
	for _, value := range values {
		stg, err := ledger.ParseStage(value)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stg)
	}
	return stages, nil
}

func stageNames() []string {
	names := make([]string, 0, len(ledger.Stages()))
	for _, stg := range ledger.Stages() {
		names = append(names, string(stg))
	}
	return names
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
