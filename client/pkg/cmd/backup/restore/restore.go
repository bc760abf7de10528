package restore

import (
	"fmt"
	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/opentracker-es/opentracker-api/internal/misc"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/spf13/cobra"
)

func NewRestoreBackupCmd(f *cmdutil.Factory) *cobra.Command {
	var id string
	var yes bool
	cmd := &cobra.Command{
		Use:     "restore",
		Short:   "Restore the database from a backup",
		Long:    "Replace the current database with the content of a backup. A safety backup of the current state is taken first",
		Example: "opentracker backup restore --id <backup_id>",
		Run: func(cmd *cobra.Command, args []string) {
			backupID, err := uuid.Parse(id)
			if err != nil {
				cmdutil.PrintE("Invalid backup ID: " + id)
				return
			}

			if !yes {
				p := promptui.Prompt{
					Label:     "Restoring drops the current data. Continue",
					IsConfirm: true,
				}
				result, err := p.Run()
				if err != nil || !misc.StrContains(result, []string{"Yes", "yes", "y"}) {
					cmdutil.Print("Aborted")
					return
				}
			}

			svc, err := f.Service()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Restoring...")
			result, err := svc.RestoreBackup(cmd.Context(), backupID)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			if result.Status != types.RestoreStatusSuccess {
				cmdutil.PrintE(result.Message)
				cmdutil.Print(fmt.Sprintf("Safety backup taken before the restore: %s", result.PreRestoreBackupID))
				return
			}

			cmdutil.PrintS(result.Message)
			cmdutil.Print(fmt.Sprintf("Safety backup: %s", result.PreRestoreBackupID))
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the backup to restore")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
