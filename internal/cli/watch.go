package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aberwag/snattach/internal/observability"
	"github.com/aberwag/snattach/internal/servicenow"
	"github.com/aberwag/snattach/internal/watch"
)

var (
	watchDir   string
	watchTable string
	watchSysID string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a directory and upload every new file as an attachment",
	Long: `Watch runs until interrupted, uploading each file created under the
watched directory to one fixed record. Health and Prometheus metrics
endpoints are served on watch.metrics_addr (default :8080).`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "directory to watch (overrides watch.dir)")
	watchCmd.Flags().StringVar(&watchTable, "table", "", "target table name (overrides watch.table)")
	watchCmd.Flags().StringVar(&watchSysID, "sys-id", "", "sys_id of the target record (overrides watch.table_sys_id)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if watchDir != "" {
		cfg.Watch.Dir = watchDir
	}
	if watchTable != "" {
		cfg.Watch.Table = watchTable
	}
	if watchSysID != "" {
		cfg.Watch.TableSysID = watchSysID
	}
	if cfg.Watch.Dir == "" || cfg.Watch.Table == "" || cfg.Watch.TableSysID == "" {
		return fmt.Errorf("watch requires a directory, table, and sys_id (flags or watch section of the config file)")
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

	client := servicenow.NewClient(logger,
		servicenow.WithTimeout(time.Duration(cfg.ServiceNow.TimeoutSeconds)*time.Second),
	)
	watcher, err := watch.New(cfg.Watch, conn, client, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obsSrv := observability.NewServer(cfg.Watch.MetricsAddr, logger)
	defer obsSrv.SetReady(false)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return obsSrv.Start(gCtx)
	})
	g.Go(func() error {
		return watcher.Run(gCtx)
	})

	obsSrv.SetReady(true)
	logger.Info("watch mode ready",
		"dir", cfg.Watch.Dir,
		"table", cfg.Watch.Table,
		"metrics_addr", cfg.Watch.MetricsAddr,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("watch mode shutdown complete")
	return nil
}
