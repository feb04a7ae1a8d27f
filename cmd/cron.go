package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/minibot-ai/minibot/internal/config"
	"github.com/minibot-ai/minibot/internal/cron"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Manage scheduled jobs",
	}
	cmd.AddCommand(cronAddCmd())
	cmd.AddCommand(cronListCmd())
	cmd.AddCommand(cronRemoveCmd())
	return cmd
}

// openCronService loads the job store without starting the ticker.
func openCronService() *cron.Service {
	svc := cron.NewService(filepath.Join(config.DataDir(), "cron", "jobs.json"), nil)
	if err := svc.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	return svc
}

func cronAddCmd() *cobra.Command {
	var (
		name    string
		message string
		every   time.Duration
		expr    string
		at      string
		channel string
		to      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled job",
		Run: func(cmd *cobra.Command, args []string) {
			var sched cron.Schedule
			switch {
			case every > 0:
				sched = cron.Schedule{Kind: "every", EveryMs: every.Milliseconds()}
			case expr != "":
				sched = cron.Schedule{Kind: "cron", Expr: expr}
			case at != "":
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: invalid --at time: %s\n", err)
					os.Exit(1)
				}
				sched = cron.Schedule{Kind: "at", AtMs: t.UnixMilli()}
			default:
				fmt.Fprintln(os.Stderr, "error: one of --every, --cron or --at is required")
				os.Exit(1)
			}

			if name == "" {
				name = message
				if len(name) > 30 {
					name = name[:30]
				}
			}

			payload := cron.Payload{Message: message}
			if channel != "" && to != "" {
				payload.Deliver = true
				payload.Channel = channel
				payload.To = to
			}

			svc := openCronService()
			job, err := svc.AddJob(name, sched, payload, sched.Kind == "at")
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %s\n", err)
				os.Exit(1)
			}
			fmt.Printf("Created job '%s' (id: %s)\n", job.Name, job.ID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "job name (defaults to the message)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "message injected into the agent when the job fires")
	cmd.Flags().DurationVar(&every, "every", 0, "run repeatedly at this interval (e.g. 30m, 2h)")
	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (e.g. '0 9 * * *')")
	cmd.Flags().StringVar(&at, "at", "", "run once at this RFC3339 time")
	cmd.Flags().StringVar(&channel, "channel", "", "deliver the agent's reply to this channel")
	cmd.Flags().StringVar(&to, "to", "", "chat ID for --channel delivery")
	cmd.MarkFlagRequired("message")
	return cmd
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Run: func(cmd *cobra.Command, args []string) {
			jobs := openCronService().ListJobs()
			if len(jobs) == 0 {
				fmt.Println("No scheduled jobs.")
				return
			}
			for _, job := range jobs {
				next := "-"
				if job.State.NextRunAtMs > 0 {
					next = time.UnixMilli(job.State.NextRunAtMs).Format("2006-01-02 15:04:05")
				}
				status := job.State.LastStatus
				if status == "" {
					status = "pending"
				}
				fmt.Printf("%s  %-20s  %-5s  next=%s  last=%s\n", job.ID, job.Name, job.Schedule.Kind, next, status)
			}
		},
	}
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Remove a scheduled job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			removed, err := openCronService().RemoveJob(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %s\n", err)
				os.Exit(1)
			}
			if !removed {
				fmt.Printf("No job with id %s\n", args[0])
				os.Exit(1)
			}
			fmt.Printf("Removed job %s\n", args[0])
		},
	}
}
