package main

import (
	"encoding/json"
	"fmt"

	"github.com/snipnote/scribed/internal/dataset"
	"github.com/snipnote/scribed/internal/models"
	"github.com/spf13/cobra"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Job management commands",
	}

	cmd.AddCommand(newJobCreateCmd())
	cmd.AddCommand(newJobShowCmd())
	cmd.AddCommand(newJobListCmd())
	cmd.AddCommand(newJobImportCmd())
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var (
		configPath  string
		audioURL    string
		language    string
		meetingID   string
		totalChunks int
		duration    float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a transcription job",
		Long: `Queues a new transcription job.

With --url the job transcribes a single audio file. With --meeting the job
processes pre-uploaded chunks registered for that meeting instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configPath)
			if err != nil {
				return err
			}
			job := models.Job{
				AudioURL:    audioURL,
				Language:    language,
				MeetingID:   meetingID,
				TotalChunks: totalChunks,
				Duration:    duration,
			}
			switch {
			case meetingID != "":
				job.Mode = models.ModeChunked
			case audioURL != "":
				job.Mode = models.ModeSingle
			default:
				return fmt.Errorf("either --url or --meeting is required")
			}
			if err := a.store.CreateJob(&job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s job %s\n", job.Mode, job.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to scribed config file")
	cmd.Flags().StringVar(&audioURL, "url", "", "audio file URL")
	cmd.Flags().StringVar(&language, "language", "", "language hint (e.g. en)")
	cmd.Flags().StringVar(&meetingID, "meeting", "", "meeting ID with pre-uploaded chunks")
	cmd.Flags().IntVar(&totalChunks, "total-chunks", 0, "expected chunk count for chunked jobs")
	cmd.Flags().Float64Var(&duration, "duration", 0, "known audio duration in seconds")
	return cmd
}

func newJobShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's status and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configPath)
			if err != nil {
				return err
			}
			job, err := a.store.GetJob(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return fmt.Errorf("encode job: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to scribed config file")
	return cmd
}

func newJobListCmd() *cobra.Command {
	var (
		configPath string
		status     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configPath)
			if err != nil {
				return err
			}
			jobs, err := a.store.ListJobs(status, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs.")
				return nil
			}
			for _, j := range jobs {
				fmt.Fprintf(out, "%s  %-13s %-8s %3d%%  %s\n", j.ID, j.Status, j.Mode, j.Progress, j.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to scribed config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum jobs to show")
	return cmd
}

func newJobImportCmd() *cobra.Command {
	var (
		configPath string
		language   string
	)

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Bulk-create jobs from a spreadsheet",
		Long:  "Reads audio URLs from a spreadsheet (column auto-detected by header) and queues one single-file job per row.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configPath)
			if err != nil {
				return err
			}
			records, err := dataset.Load(args[0])
			if err != nil {
				return err
			}
			for _, r := range records {
				lang := r.Language
				if lang == "" {
					lang = language
				}
				job := models.Job{AudioURL: r.AudioURL, Language: lang}
				if err := a.store.CreateJob(&job); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %d jobs from %s\n", len(records), args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to scribed config file")
	cmd.Flags().StringVar(&language, "language", "", "default language hint for imported jobs")
	return cmd
}
