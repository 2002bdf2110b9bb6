// Package watch uploads files dropped into a local directory as attachments
// to a fixed ServiceNow record.
//
// The watcher reacts to file-create events via fsnotify. A newly created
// file may still be mid-write when the event arrives, so the watcher waits a
// configurable settle delay before reading it. Each file is uploaded at most
// once; failures are logged and the watcher keeps running.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aberwag/snattach/internal/config"
	"github.com/aberwag/snattach/internal/servicenow"
)

// Watcher uploads every file created under a directory to one record.
type Watcher struct {
	dir         string
	table       string
	tableSysID  string
	contentType string
	settle      time.Duration

	conn   servicenow.Connection
	client servicenow.Client
	logger *slog.Logger
}

// New creates a Watcher from watch configuration and a resolved connection.
func New(cfg config.WatchConfig, conn servicenow.Connection, client servicenow.Client, logger *slog.Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch: directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch: %s is not a directory", cfg.Dir)
	}

	return &Watcher{
		dir:         cfg.Dir,
		table:       cfg.Table,
		tableSysID:  cfg.TableSysID,
		contentType: cfg.ContentType,
		settle:      cfg.SettleDelay.Duration,
		conn:        conn,
		client:      client,
		logger:      logger.With("component", "watcher", "dir", cfg.Dir),
	}, nil
}

// Run watches the directory until the context is cancelled. Returns
// context.Canceled on a clean shutdown.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating directory watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info("watching for new files",
		"table", w.table,
		"table_sys_id", w.tableSysID,
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher shutting down")
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Act on Create only — a file being written emits one Create
			// followed by many Writes.
			if !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.uploadFile(ctx, event.Name); err != nil {
				w.logger.Error("upload failed", "file", event.Name, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("directory watcher error", "error", err)
		}
	}
}

// uploadFile reads one created path and uploads it. Dotfiles and
// subdirectories are skipped.
func (w *Watcher) uploadFile(ctx context.Context, path string) error {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		w.logger.Debug("skipping dotfile", "file", name)
		return nil
	}

	// Let the writer finish before reading.
	if w.settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.settle):
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		w.logger.Debug("skipping directory", "file", name)
		return nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if len(contents) == 0 {
		w.logger.Warn("skipping empty file", "file", name)
		return nil
	}

	result, err := w.client.UploadAttachment(ctx, w.conn, servicenow.AttachmentRequest{
		Table:       w.table,
		TableSysID:  w.tableSysID,
		FileName:    name,
		Contents:    contents,
		ContentType: w.contentType,
	})
	if err != nil {
		return err
	}

	w.logger.Info("file attached",
		"file", name,
		"attachment_sys_id", result["sys_id"],
	)
	return nil
}
