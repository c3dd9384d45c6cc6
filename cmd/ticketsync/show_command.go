package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ticketsync/internal/ledger"
)

// recordView is the printable form of one ledger record.
type recordView struct {
	TicketID    int64       `json:"ticket_id" yaml:"ticket_id"`
	CreatedWhen string      `json:"created_when,omitempty" yaml:"created_when,omitempty"`
	CreatedBy   string      `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	Stages      []stageView `json:"stages" yaml:"stages"`
}

type stageView struct {
	Stage  ledger.Stage      `json:"stage" yaml:"stage"`
	Field  string            `json:"field" yaml:"field"`
	Status string            `json:"status" yaml:"status"`
	Items  map[string]string `json:"items,omitempty" yaml:"items,omitempty"`
}

func newRecordView(rec ledger.Record) recordView {
	view := recordView{
		TicketID:    rec.TicketID,
		CreatedWhen: rec.CreatedWhen,
		CreatedBy:   rec.CreatedBy,
	}
	for _, stg := range ledger.Stages() {
		status := rec.Status(stg)
		view.Stages = append(view.Stages, stageView{
			Stage:  stg,
			Field:  stg.Field(),
			Status: status.Kind().String(),
			Items:  status.Items(),
		})
	}
	return view
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var yamlOut bool

	cmd := &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show one ticket's stage statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveFormat(jsonOut, yamlOut)
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid ticket id %q", args[0])
			}

			session, err := ctx.openAccess(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			rec, err := session.Access.Describe(cmd.Context(), id)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("ticket %d is not in the ledger", id)
			}
			view := newRecordView(*rec)
			if format != formatText {
				return writeStructured(cmd, format, view)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderRecord(view))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "Output as YAML")
	return cmd
}

func renderRecord(view recordView) string {
	var b strings.Builder
	b.WriteString(renderInfoLine("Ticket", strconv.FormatInt(view.TicketID, 10)) + "\n")
	if view.CreatedWhen != "" {
		b.WriteString(renderInfoLine("Created", view.CreatedWhen) + "\n")
	}
	if view.CreatedBy != "" {
		b.WriteString(renderInfoLine("Requester", view.CreatedBy) + "\n")
	}
	rows := make([][]string, 0, len(view.Stages))
	for _, s := range view.Stages {
		rows = append(rows, []string{s.Field, s.Status, strings.Join(slices.Sorted(maps.Keys(s.Items)), ", ")})
	}
	b.WriteString(recordLayout.render(rows, nil) + "\n")
	return b.String()
}
