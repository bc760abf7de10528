package trigger

import (
	"fmt"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/spf13/cobra"
)

func NewTriggerBackupCmd(f *cmdutil.Factory) *cobra.Command {
	return &cobra.Command{
		Use:     "trigger",
		Aliases: []string{"create"},
		Short:   "Create a backup now",
		Long:    "Dump the database and upload the archive to the configured storage. The command waits until the backup finishes",
		Run: func(cmd *cobra.Command, args []string) {
			svc, err := f.Service()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Backing up...")
			record, err := svc.TriggerBackup(cmd.Context())
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.PrintS(fmt.Sprintf("Backup %s completed (%s)", record.ID, record.SizeHuman))
		},
	}
}
