package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aberwag/snattach/internal/servicenow"
)

var (
	uploadTable       string
	uploadSysID       string
	uploadFile        string
	uploadFileName    string
	uploadContentType string
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload one file as an attachment to a record",
	Long: `Upload reads a local file and attaches it to the record identified
by --table and --sys-id via the ServiceNow Attachment API. On success the
attachment metadata returned by the instance is printed as JSON.`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadTable, "table", "", "target table name, e.g. change_request")
	uploadCmd.Flags().StringVar(&uploadSysID, "sys-id", "", "sys_id of the target record")
	uploadCmd.Flags().StringVar(&uploadFile, "file", "", "path of the file to upload")
	uploadCmd.Flags().StringVar(&uploadFileName, "file-name", "", "attachment file name (defaults to the local file name)")
	uploadCmd.Flags().StringVar(&uploadContentType, "content-type", "", "MIME type of the payload (default application/octet-stream)")
	_ = uploadCmd.MarkFlagRequired("table")
	_ = uploadCmd.MarkFlagRequired("sys-id")
	_ = uploadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ccfg, err := connectionConfig(cfg)
	if err != nil {
		return err
	}
	conn, err := servicenow.Resolve(ccfg)
	if err != nil {
		return err
	}

	contents, err := os.ReadFile(uploadFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", uploadFile, err)
	}

	fileName := uploadFileName
	if fileName == "" {
		fileName = filepath.Base(uploadFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := servicenow.NewClient(logger,
		servicenow.WithTimeout(time.Duration(cfg.ServiceNow.TimeoutSeconds)*time.Second),
	)
	result, err := client.UploadAttachment(ctx, conn, servicenow.AttachmentRequest{
		Table:       uploadTable,
		TableSysID:  uploadSysID,
		FileName:    fileName,
		Contents:    contents,
		ContentType: uploadContentType,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
