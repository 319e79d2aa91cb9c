package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSubmitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "submit FILE...",
		Short: "Upload documents and print the job id without waiting",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := gatherFiles(args)
			if err != nil {
				return err
			}
			if err := a.ctrl.Submit(cmd.Context(), files); err != nil {
				return err
			}

			st := a.ctrl.State()
			// Not waiting around; the job keeps running server-side.
			a.ctrl.Cancel()
			a.recordSubmission(st.JobID, files)

			fmt.Fprintln(cmd.OutOrStdout(), st.JobID)
			return nil
		},
	}
}
