package status

import (
	"fmt"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/opentracker-es/opentracker-api/client/internal/api"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/spf13/cobra"
)

func NewStatusCmd(f *cmdutil.Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the backup configuration and schedule",
		Run: func(cmd *cobra.Command, args []string) {
			svc, err := f.Service()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Working...")
			cfg, err := svc.GetBackupConfig(cmd.Context())
			if err != nil {
				cmdutil.StopLoading()
				cmdutil.PrintE(err.Error())
				return
			}
			schedule, err := svc.ScheduleStatus(cmd.Context())
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			if cfg == nil {
				cmdutil.PrintW("Backups are not configured yet")
				return
			}

			cmdutil.Print("")
			cmdutil.Print(render(cfg, schedule))
		},
	}
}

func render(cfg *api.BackupConfig, schedule *api.ScheduleStatus) string {
	enabled := color.RedString("disabled")
	if cfg.Enabled {
		enabled = color.GreenString("enabled")
	}

	next := "-"
	if schedule.NextRunTime != nil {
		next = schedule.NextRunTime.Local().Format("Mon 02-01-2006 15:04")
	}

	every := "-"
	if cfg.Schedule != nil {
		every = fmt.Sprintf("%s at %s UTC", cfg.Schedule.Frequency, cfg.Schedule.Time)
	}

	target := cfg.LocalPath
	switch cfg.StorageType {
	case "s3":
		target = fmt.Sprintf("%s/%s", cfg.S3Endpoint, cfg.S3Bucket)
	case "sftp":
		target = fmt.Sprintf("%s:%s", cfg.SFTPHost, cfg.SFTPPath)
	}

	tw := table.NewWriter()
	tw.AppendRows([]table.Row{
		{"Backups", enabled},
		{"Schedule", every},
		{"Next run", next},
		{"Retention", fmt.Sprintf("%d days", cfg.RetentionDays)},
		{"Storage", fmt.Sprintf("%s (%s)", cfg.StorageType, target)},
	})
	return tw.Render()
}
