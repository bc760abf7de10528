package initcmd

import (
	"fmt"
	"github.com/fatih/color"
	"github.com/opentracker-es/opentracker-api/client/internal/api"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/opentracker-es/opentracker-api/client/internal/config"
	"github.com/spf13/cobra"
	"net/url"
	"os"
)

func NewConfigInitCmd() *cobra.Command {
	var host, accessKey string
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Set opentracker configuration",
		Long:    "Check the server is reachable with the given access key and save both to ~/" + config.FileName,
		Example: "opentracker config init --host <https://tracker.example.com> --access-key <key>",
		Run: func(cmd *cobra.Command, args []string) {
			uri, err := url.Parse(host)
			if err != nil || uri.Scheme == "" || uri.Host == "" {
				cmdutil.PrintE("Invalid host: " + host)
				return
			}

			if len(accessKey) == 0 {
				cmdutil.PrintE("Access key is required")
				return
			}

			cmdutil.StartLoading("Running test...")
			defer cmdutil.StopLoading()

			cfg := config.Config{Host: uri.String(), AccessKey: accessKey}
			svc := api.NewService(api.NewClient(cfg))
			if err := svc.Ping(cmd.Context()); err != nil {
				color.Cyan(err.Error())
				return
			}

			if err := config.SaveConfig(cfg); err != nil {
				cmdutil.Print(fmt.Sprintf("Failed to save config: %s", color.RedString(err.Error())))
				return
			}

			_, _ = fmt.Fprintln(os.Stdout, fmt.Sprintf("\n%s: Configuration set successfully", color.GreenString("Test passed")))
		},
	}
	cmd.Flags().StringVarP(&host, "host", "i", "", "opentracker server host url")
	cmd.Flags().StringVarP(&accessKey, "access-key", "a", "", "opentracker server access key")
	return cmd
}
