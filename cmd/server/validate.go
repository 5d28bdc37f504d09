package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inpatient-hub/backend/internal/seed"
	"inpatient-hub/backend/internal/workflow"
)

var errInvalidWorkflow = errors.New("workflow is not valid")

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a workflow file (YAML or JSON) without starting the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			wf, err := seed.DecodeWorkflow(data)
			if err != nil {
				return err
			}

			res := workflow.Validate(wf.Steps)
			out := cmd.OutOrStdout()
			if res.Valid {
				fmt.Fprintln(out, "valid")
				return nil
			}
			for _, msg := range res.Errors {
				fmt.Fprintln(out, msg)
			}
			return errInvalidWorkflow
		},
	}
}
