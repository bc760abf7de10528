package schedule

import (
	"context"
	"fmt"
	"github.com/opentracker-es/opentracker-api/client/internal/api"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/opentracker-es/opentracker-api/internal/backup"
	"github.com/opentracker-es/opentracker-api/internal/service"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"os"
	"os/signal"
	"time"
)

type options struct {
	frequency  string
	at         string
	dayOfWeek  int
	dayOfMonth int
	retention  int
	disable    bool
}

func NewBackupScheduleCmd(f *cmdutil.Factory) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Change the backup schedule",
		Long:  "Set how often scheduled backups run and how long they are kept. Times are UTC. Storage settings stay as they are",
		Example: "opentracker backup schedule --frequency daily --time 03:00\n" +
			"opentracker backup schedule --frequency weekly --time 02:30 --day-of-week 0\n" +
			"opentracker backup schedule --disable",
		Run: func(cmd *cobra.Command, args []string) {
			svc, err := f.Service()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cmdutil.StartLoading("Working...")
			current, err := svc.GetBackupConfig(ctx)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			input, err := opts.input(current)
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Saving...")
			_, err = svc.UpdateBackupConfig(ctx, input)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			if !input.Enabled {
				cmdutil.PrintS("Scheduled backups disabled")
				return
			}
			cmdutil.PrintS("Backup schedule updated!")
			if next, err := preview(input.Schedule, time.Now()); err == nil {
				cmdutil.Print("Next run: " + next.Local().Format("Mon 02-01-2006 15:04"))
			}
		},
	}

	cmd.Flags().StringVarP(&opts.frequency, "frequency", "f", types.FrequencyDaily, "daily, weekly or monthly")
	cmd.Flags().StringVarP(&opts.at, "time", "t", "03:00", "Time of day in UTC, HH:MM")
	cmd.Flags().IntVar(&opts.dayOfWeek, "day-of-week", 0, "Day of week for weekly backups, 0 is Monday")
	cmd.Flags().IntVar(&opts.dayOfMonth, "day-of-month", 1, "Day of month for monthly backups, 1 to 28")
	cmd.Flags().IntVarP(&opts.retention, "retention", "r", 0, "Days to keep backups, 0 keeps the current value")
	cmd.Flags().BoolVar(&opts.disable, "disable", false, "Turn scheduled backups off")
	return cmd
}

// input builds the update from the current config. Nested storage configs are left
// out so the server keeps the stored credentials.
func (o *options) input(current *api.BackupConfig) (api.BackupConfigInput, error) {
	if current == nil {
		return api.BackupConfigInput{}, errors.New("backup storage is not configured on the server yet")
	}

	input := api.BackupConfigInput{
		Enabled:       !o.disable,
		Schedule:      current.Schedule,
		RetentionDays: current.RetentionDays,
		StorageType:   current.StorageType,
	}
	if o.retention > 0 {
		input.RetentionDays = o.retention
	}
	if o.disable {
		return input, nil
	}

	s := &types.Schedule{Frequency: o.frequency, Time: o.at}
	switch o.frequency {
	case types.FrequencyWeekly:
		s.DayOfWeek = &o.dayOfWeek
	case types.FrequencyMonthly:
		s.DayOfMonth = &o.dayOfMonth
	}

	if err := service.NewValidator().Struct(s); err != nil {
		return input, service.ValidationMessage(err)
	}
	input.Schedule = s
	return input, nil
}

func preview(s *types.Schedule, now time.Time) (time.Time, error) {
	expr, err := backup.CronExpression(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule: %w", err)
	}
	return backup.NextRun(expr, now)
}
