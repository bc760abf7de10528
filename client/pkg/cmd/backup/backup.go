package backup

import (
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/download"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/list"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/remove"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/restore"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/schedule"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/status"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/testconn"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup/trigger"
	"github.com/spf13/cobra"
)

func NewBackupCmd(f *cmdutil.Factory) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "backup <command>",
		Aliases: []string{"bc"},
		Short:   "Manage database backups",
		Long:    "List, create, restore and delete database backups. Download a specific backup file or change the backup schedule",
	}

	cmd.AddCommand(list.NewListBackupsCmd(f))
	cmd.AddCommand(trigger.NewTriggerBackupCmd(f))
	cmd.AddCommand(restore.NewRestoreBackupCmd(f))
	cmd.AddCommand(remove.NewDeleteBackupCmd(f))
	cmd.AddCommand(download.NewDownloadBackupCmd(f))
	cmd.AddCommand(status.NewStatusCmd(f))
	cmd.AddCommand(testconn.NewTestConnectionCmd(f))
	cmd.AddCommand(schedule.NewBackupScheduleCmd(f))
	return cmd
}
