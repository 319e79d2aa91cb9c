package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/marek/docmill/internal/domain"
)

func newDownloadCmd(a *app) *cobra.Command {
	var (
		file string
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "download JOB_ID",
		Short: "Download results of a completed job",
		Long: `Download what a completed job produced.

Without flags the service decides: a single output is saved directly, several
outputs come back as a listing to pick from. --file saves one named output,
--all saves every output as one archive.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" && all {
				return errors.New("--file and --all are mutually exclusive")
			}
			jobID := args[0]
			ctx := cmd.Context()

			if all {
				// The bundled archive is only offered for jobs with more
				// than one output; a single output goes through --file.
				report, err := a.client.JobStatus(ctx, jobID)
				if err != nil {
					return err
				}
				if len(report.OutputFiles) < 2 {
					return &domain.DownloadError{Message: "bundled download needs more than one output file"}
				}
				if !a.confirmOverwrite(cmd, domain.DefaultArchiveName) {
					return nil
				}
				outcome, err := a.retriever.DownloadAll(ctx, jobID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", outcome.Path)
				return nil
			}

			if file != "" && !a.confirmOverwrite(cmd, file) {
				return nil
			}
			outcome, err := a.retriever.DownloadOne(ctx, jobID, file)
			if err != nil {
				return err
			}
			if outcome.Listing() {
				printListing(cmd, outcome.Links)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", outcome.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "download a single named output")
	cmd.Flags().BoolVar(&all, "all", false, "download every output as one archive")
	return cmd
}

// confirmOverwrite asks before clobbering an existing file. --yes skips the
// prompt, and a target that does not exist yet needs no confirmation.
func (a *app) confirmOverwrite(cmd *cobra.Command, name string) bool {
	if a.yes {
		return true
	}
	target := filepath.Join(a.cfg.Output.Dir, filepath.Base(name))
	if _, err := os.Stat(target); err != nil {
		return true
	}

	prompt := promptui.Prompt{
		Label:     fmt.Sprintf("Overwrite %s", target),
		IsConfirm: true,
	}
	if _, err := prompt.Run(); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "skipped")
		return false
	}
	return true
}

func printListing(cmd *cobra.Command, links []domain.DownloadLink) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"File", "URL"})
	for _, l := range links {
		table.Append([]string{l.Filename, l.URL})
	}
	table.Render()
}
