package testconn

import (
	"github.com/opentracker-es/opentracker-api/client/internal/api"
	"github.com/opentracker-es/opentracker-api/client/internal/cmdutil"
	"github.com/opentracker-es/opentracker-api/internal/service"
	"github.com/opentracker-es/opentracker-api/internal/types"
	"github.com/spf13/cobra"
)

type options struct {
	storageType string
	s3          types.S3ConfigInput
	sftp        types.SFTPConfigInput
	localPath   string
}

func NewTestConnectionCmd(f *cmdutil.Factory) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Check that a storage backend is usable",
		Long:  "Ask the server to connect to a storage backend with the given settings. Nothing is saved",
		Example: "opentracker backup test-connection --type s3 --endpoint https://s3.us-west-004.backblazeb2.com --bucket tracker --access-key-id <id> --secret-access-key <secret>\n" +
			"opentracker backup test-connection --type sftp --host sftp.example.com --username backup --password <password>",
		Run: func(cmd *cobra.Command, args []string) {
			params, err := opts.params()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			svc, err := f.Service()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			cmdutil.StartLoading("Connecting...")
			result, err := svc.TestConnection(cmd.Context(), params)
			cmdutil.StopLoading()
			if err != nil {
				cmdutil.PrintE(err.Error())
				return
			}

			if !result.Success {
				cmdutil.PrintE(result.Message)
				return
			}
			cmdutil.PrintS(result.Message)
		},
	}

	cmd.Flags().StringVarP(&opts.storageType, "type", "t", "", "Storage type: local, s3 or sftp")
	cmd.Flags().StringVar(&opts.s3.EndpointURL, "endpoint", "", "S3 endpoint url")
	cmd.Flags().StringVar(&opts.s3.BucketName, "bucket", "", "S3 bucket name")
	cmd.Flags().StringVar(&opts.s3.Region, "region", types.DefaultS3Region, "S3 region")
	cmd.Flags().StringVar(&opts.s3.AccessKeyID, "access-key-id", "", "S3 access key id")
	cmd.Flags().StringVar(&opts.s3.SecretAccessKey, "secret-access-key", "", "S3 secret access key")
	cmd.Flags().StringVar(&opts.sftp.Host, "host", "", "SFTP host")
	cmd.Flags().IntVar(&opts.sftp.Port, "port", types.DefaultSFTPPort, "SFTP port")
	cmd.Flags().StringVar(&opts.sftp.Username, "username", "", "SFTP username")
	cmd.Flags().StringVar(&opts.sftp.Password, "password", "", "SFTP password")
	cmd.Flags().StringVar(&opts.sftp.RemotePath, "remote-path", types.DefaultSFTPRemotePath, "SFTP remote directory")
	cmd.Flags().StringVar(&opts.localPath, "path", types.DefaultLocalBackupPath, "Local backup directory on the server")
	return cmd
}

func (o *options) params() (api.TestConnectionArgs, error) {
	params := api.TestConnectionArgs{StorageType: types.StorageType(o.storageType)}
	switch params.StorageType {
	case types.StorageTypeS3:
		params.S3Config = &o.s3
	case types.StorageTypeSFTP:
		params.SFTPConfig = &o.sftp
	case types.StorageTypeLocal:
		params.LocalConfig = &types.LocalConfig{Path: o.localPath}
	}

	if err := service.NewValidator().Struct(params); err != nil {
		return params, service.ValidationMessage(err)
	}
	return params, nil
}
