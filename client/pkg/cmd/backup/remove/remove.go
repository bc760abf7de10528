package remove

import (
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/spf13/cobra"
)

func NewDeleteBackupCmd(f *cmdutil.Factory) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:     "delete",
		Aliases: []string{"rm"},
		Short:   "Delete a backup",
		Long:    "Delete a backup from the storage and remove it from the catalog",
		Example: "opentracker backup delete --id <backup_id>",
		Run: func(cmd *cobra.Command, args []string) {
			backupID, err := uuid.Parse(id)
			if err != nil {
				cmdutil.PrintE("Invalid backup ID: " + id)
				return
			}

			svc, err := f.Service()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Deleting...")
			err = svc.DeleteBackup(cmd.Context(), backupID)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.PrintS("Backup deleted")
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the backup to delete")
	return cmd
}
