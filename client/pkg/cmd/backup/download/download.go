package download

import (
	"github.com/google/uuid"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/spf13/cobra"
	"io"
	"os"
)

func NewDownloadBackupCmd(f *cmdutil.Factory) *cobra.Command {
	var id string
	var location string
	cmd := &cobra.Command{
		Use:     "download",
		Short:   "Download a backup",
		Long:    "Download a database backup file from the storage. You can use the backup ID to download a specific backup. To see the list of backups, use 'opentracker backup list'",
		Example: "opentracker backup download --id <backup_id> --location <location>",
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

			if location == "" {
				location = backupID.String() + ".gz"
			}

			cmdutil.StartLoading("Downloading backup...")
			defer cmdutil.StopLoading()

			backup, err := svc.DownloadBackup(cmd.Context(), backupID)
			if err != nil {
				cmdutil.PrintE("Error downloading backup: " + err.Error())
				return
			}

			defer func() {
				_ = backup.Close()
			}()

			backupFile, err := os.Create(location)
			if err != nil {
				cmdutil.PrintE("Error creating file: " + err.Error())
				return
			}

			defer func() {
				_ = backupFile.Close()
			}()

			_, err = io.Copy(backupFile, backup)
			if err != nil {
				cmdutil.PrintE("Error writing to file: " + err.Error())
				return
			}

			cmdutil.PrintS("Backup downloaded successfully: " + location)
		},
	}

	cmd.Flags().StringVarP(&id, "id", "i", "", "ID of the backup you want to download")
	cmd.Flags().StringVarP(&location, "location", "l", "", "Location to download the backup file")
	return cmd
}
