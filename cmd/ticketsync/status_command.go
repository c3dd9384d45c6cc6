package main

import (
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	var yamlOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-stage ledger progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveFormat(jsonOut, yamlOut)
			if err != nil {
				return err
			}
			session, err := ctx.openAccess(cmd.Context())
			if err != nil {
				return err
			}
			defer session.Close()

			summary, err := session.Access.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if format != formatText {
				return writeStructured(cmd, format, summary)
			}
			source := "ledger file"
			if session.Remote {
				source = "status api"
			}
			out := cmd.OutOrStdout()
			_, err = out.Write([]byte(renderSummary(summary, source, shouldColorize(out))))
			return err
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&yamlOut, "yaml", false, "Output as YAML")
	return cmd
}
