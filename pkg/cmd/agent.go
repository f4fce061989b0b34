package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/photovault/pkg/app"
	"github.com/yeisme/photovault/pkg/internal/jobs"
	nlog "github.com/yeisme/photovault/pkg/log"
	"github.com/yeisme/photovault/pkg/scheduler"
)

var (
	agentDisable []string
	agentKick    []string

	agentCmd = &cobra.Command{
		Use:   "agent",
		Short: "run the background maintenance agent",
		Long:  "run the scheduler with the repository heartbeat and index check jobs until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.NewApp(configPath)
			defer func() { _ = a.Close() }()

			sched, err := scheduler.NewScheduler()
			if err != nil {
				return fmt.Errorf("create scheduler: %w", err)
			}

			if err := jobs.RegisterCronJobs(sched, a.Manager); err != nil {
				return fmt.Errorf("register cron jobs: %w", err)
			}

			for _, name := range agentDisable {
				if err := sched.RemoveJobByName(name); err != nil {
					return fmt.Errorf("disable job: %w", err)
				}
			}

			sched.Start()

			for _, info := range sched.JobInfos() {
				nlog.Logger().Info().
					Str("job", info.Name).
					Str("cron", info.CronExpr).
					Time("next_run", info.NextRun).
					Msg("maintenance job scheduled")
			}

			for _, name := range agentKick {
				info, err := sched.GetJobInfoByName(name)
				if err != nil {
					return fmt.Errorf("kick job: %w", err)
				}

				if err := sched.RunJobNow(info.Name); err != nil {
					return fmt.Errorf("kick job %s: %w", info.Name, err)
				}

				nlog.Logger().Info().Str("job", info.Name).Msg("maintenance job kicked")
			}

			nlog.Logger().Info().Msg("maintenance agent started")

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			<-quit

			nlog.Logger().Info().Msg("maintenance agent stopping")

			return sched.Stop()
		},
	}
)

// registerAgentCommands 注册后台代理命令.
func registerAgentCommands() {
	agentCmd.Flags().StringSliceVar(&agentDisable, "disable", nil, "job names to unregister before starting")
	agentCmd.Flags().StringSliceVar(&agentKick, "kick", nil, "job names to run immediately after starting")

	rootCmd.AddCommand(agentCmd)
}
