package main

import (
	"fmt"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/marek/docmill/internal/controller"
	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/service"
)

func newStatusCmd(a *app) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Check a job once and print where it stands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return watchStatus(cmd, a, args[0])
			}
			return checkStatus(cmd, a, args[0])
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep checking until the job settles")
	return cmd
}

func checkStatus(cmd *cobra.Command, a *app, jobID string) error {
	report, err := a.client.JobStatus(cmd.Context(), jobID)
	if err != nil {
		return err
	}

	status, known := domain.ParseStatus(report.Status)
	if !known {
		fmt.Fprintf(cmd.OutOrStdout(), "job %s reports unrecognized status %q\n", jobID, report.Status)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "job %s: %s (%d%%)\n", jobID, status, domain.ProgressFor(status))

	switch status {
	case domain.StatusCompleted:
		for _, f := range report.OutputFiles {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
		}
		a.recordSettled(jobID, controller.State{
			Status:      status,
			Progress:    domain.ProgressFor(status),
			OutputFiles: report.OutputFiles,
		})
	case domain.StatusFailed:
		detail := report.Error
		if detail == "" {
			detail = "conversion failed"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", detail)
		a.recordSettled(jobID, controller.State{
			Status: status,
			Err:    &domain.JobFailedError{JobID: jobID, Detail: report.Error},
		})
	}
	return nil
}

// watchStatus follows the job on the regular poll interval until it settles,
// driving the same progress bar the convert command shows.
func watchStatus(cmd *cobra.Command, a *app, jobID string) error {
	mon := service.NewMonitor(a.client, a.log, nil)
	defer mon.Cancel()

	bar := pb.ProgressBarTemplate(barTemplate).New(100)
	bar.SetWriter(cmd.ErrOrStderr())
	bar.Set("status", "checking")
	bar.Start()

	var final domain.Snapshot
	for snap := range mon.Watch(cmd.Context(), jobID) {
		if snap.Status != "" {
			bar.Set("status", string(snap.Status))
		}
		bar.SetCurrent(int64(snap.Progress))
		final = snap
	}
	bar.Finish()

	switch final.Status {
	case domain.StatusCompleted:
		fmt.Fprintf(cmd.OutOrStdout(), "job %s completed with %d output file(s)\n", jobID, len(final.OutputFiles))
		for _, f := range final.OutputFiles {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
		}
		a.recordSettled(jobID, controller.State{
			Status:      final.Status,
			Progress:    final.Progress,
			OutputFiles: final.OutputFiles,
		})
		return nil

	case domain.StatusFailed:
		a.recordSettled(jobID, controller.State{Status: final.Status, Err: final.Err})
		return final.Err

	default:
		if final.Err != nil {
			return final.Err
		}
		return fmt.Errorf("watch ended unexpectedly in status %q", final.Status)
	}
}
