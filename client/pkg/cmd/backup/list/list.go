package list

import (
	"context"
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/opentracker-es/opentracker-api/client/internal/api"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/spf13/cobra"
	"time"
)

func NewListBackupsCmd(f *cmdutil.Factory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backups",
		Long:  "List every backup in the catalog, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			svc, err := f.Service()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Working...")
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			list, err := svc.ListBackups(ctx)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.Print("")
			cmdutil.Print(render(list))
		},
	}
}

func render(list *api.BackupList) string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"ID", "Status", "Trigger", "Storage", "Size", "Documents", "Time Created"})
	for _, next := range list.Backups {
		documents := "-"
		if next.DocumentsCount != nil {
			documents = fmt.Sprint(*next.DocumentsCount)
		}
		tw.AppendRow(table.Row{
			next.ID.String(),
			next.Status,
			next.Trigger,
			next.StorageType,
			next.SizeHuman,
			documents,
			next.CreatedAt.Local().Format("02-01-2006 15:04"),
		})
	}
	tw.AppendFooter(table.Row{fmt.Sprintf("%d backups", list.TotalCount), "", "", "", list.TotalSizeHuman})
	return tw.Render()
}
