package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/marek/docmill/internal/controller"
	"github.com/marek/docmill/internal/domain"
	"github.com/marek/docmill/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent submissions from the local ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.hist == nil {
				return errors.New("history is disabled (see history.enabled in the config)")
			}
			recs, err := a.hist.Recent(limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no submissions recorded yet")
				return nil
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Job", "Submitted", "Files", "Status", "Outputs", "Error"})
			for _, r := range recs {
				table.Append([]string{
					shortID(r.JobID),
					humanize.Time(r.SubmittedAt),
					r.FileNames,
					r.Status,
					strconv.Itoa(r.OutputCount),
					r.Error,
				})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// recordSubmission writes a fresh ledger entry. A disabled ledger makes this
// a no-op; ledger failures are logged and never interrupt the command.
func (a *app) recordSubmission(jobID string, files []domain.LocalFile) {
	if a.hist == nil || jobID == "" {
		return
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	rec := &history.Record{
		JobID:      jobID,
		ServiceURL: a.cfg.Service.BaseURL,
		FileNames:  strings.Join(names, ", "),
		FileCount:  len(files),
	}
	if err := a.hist.Add(rec); err != nil {
		a.log.WithError(err).Warn("failed to record submission")
	}
}

// recordSettled marks a ledger entry with the job's terminal outcome. Jobs
// submitted from elsewhere have no entry, which is fine: the update simply
// matches nothing.
func (a *app) recordSettled(jobID string, st controller.State) {
	if a.hist == nil || jobID == "" || !st.Status.Terminal() {
		return
	}
	msg := ""
	if st.Err != nil {
		msg = st.Err.Error()
	}
	if err := a.hist.Finish(jobID, st.Status, st.Progress, len(st.OutputFiles), msg); err != nil {
		a.log.WithError(err).Warn("failed to record completion")
	}
}
