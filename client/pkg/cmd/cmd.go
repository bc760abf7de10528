package cmd

import (
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/opentracker-es/opentracker-api/client/pkg/cmd/backup"
	configcmd "github.com/opentracker-es/opentracker-api/client/pkg/cmd/config"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	f := cmdutil.NewFactory()

	cmd := &cobra.Command{
		Use:   "opentracker",
		Short: "opentracker - manage the backups of your time tracking server",
	}

	cmd.AddCommand(configcmd.NewConfigCmd())
	cmd.AddCommand(backup.NewBackupCmd(f))
	return cmd
}
