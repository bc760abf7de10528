package configcmd

import (
	initcmd "github.com/opentracker-es/opentracker-api/client/pkg/cmd/config/init"
	"github.com/spf13/cobra"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config <command>",
		Aliases: []string{"c"},
		Short:   "Manage opentracker client configuration",
	}

	cmd.AddCommand(initcmd.NewConfigInitCmd())
	return cmd
}
