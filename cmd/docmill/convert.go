package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/marek/docmill/internal/controller"
	"github.com/marek/docmill/internal/domain"
)

const barTemplate = `{{string . "status" | printf "%-11s"}} {{bar . "[" "=" ">" " " "]"}} {{percent . }}`

func newConvertCmd(a *app) *cobra.Command {
	var noDownload bool

	cmd := &cobra.Command{
		Use:   "convert FILE...",
		Short: "Upload documents, wait for conversion, and download the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, a, args, noDownload)
		},
	}
	cmd.Flags().BoolVar(&noDownload, "no-download", false, "stop once the job settles, leave results on the service")
	return cmd
}

func runConvert(cmd *cobra.Command, a *app, args []string, noDownload bool) error {
	files, err := gatherFiles(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bar := pb.ProgressBarTemplate(barTemplate).New(100)
	bar.SetWriter(cmd.ErrOrStderr())
	bar.Set("status", "uploading")
	bar.Start()
	defer bar.Finish()

	// A session is settled once the job reaches a terminal status or a
	// status check fails; everything else keeps the watch alive.
	settled := make(chan controller.State, 1)
	var once sync.Once
	a.ctrl.OnChange(func(st controller.State) {
		if st.Status != "" {
			bar.Set("status", string(st.Status))
		}
		bar.SetCurrent(int64(st.Progress))

		var perr *domain.PollError
		if st.Status.Terminal() || errors.As(st.Err, &perr) {
			once.Do(func() { settled <- st })
		}
	})

	if err := a.ctrl.Submit(ctx, files); err != nil {
		return err
	}
	jobID := a.ctrl.State().JobID
	a.recordSubmission(jobID, files)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var final controller.State
	select {
	case final = <-settled:
	case <-sigs:
		a.ctrl.Cancel()
		bar.Finish()
		fmt.Fprintln(cmd.OutOrStdout(), "canceled; the job keeps running on the service")
		fmt.Fprintf(cmd.OutOrStdout(), "check on it later with: docmill status %s\n", jobID)
		return nil
	}
	bar.Finish()

	switch final.Status {
	case domain.StatusCompleted:
		a.recordSettled(jobID, final)
		fmt.Fprintf(cmd.OutOrStdout(), "job %s completed with %d output file(s)\n", jobID, len(final.OutputFiles))
		for _, f := range final.OutputFiles {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", f)
		}
		if noDownload {
			return nil
		}
		return downloadResults(cmd, ctx, a, final)

	case domain.StatusFailed:
		a.recordSettled(jobID, final)
		if final.Err != nil {
			return final.Err
		}
		return &domain.JobFailedError{JobID: jobID}

	default:
		// The watch ended without a verdict, so the status check failed.
		if final.Err != nil {
			return final.Err
		}
		return fmt.Errorf("watch ended unexpectedly in status %q", final.Status)
	}
}

// downloadResults fetches what the job produced: a lone output directly, and
// several outputs as one bundled archive.
func downloadResults(cmd *cobra.Command, ctx context.Context, a *app, st controller.State) error {
	if len(st.OutputFiles) == 0 {
		return nil
	}

	if len(st.OutputFiles) == 1 {
		outcome, err := a.ctrl.RequestDownload(ctx, st.OutputFiles[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", outcome.Path)
		return nil
	}

	outcome, err := a.ctrl.RequestDownloadAll(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", outcome.Path)
	return nil
}
