package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24

	snapshotPrefix = "leads-"
	snapshotExt    = ".csv"
	snapshotLayout = "20060102-150405"
)

// Manager takes periodic copies of the lead log and optionally uploads them.
type Manager struct {
	log      Snapshotter
	cfg      Config
	uploader Uploader
	logger   zerolog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewManager initializes the snapshot manager. It returns nil when snapshots
// are disabled.
func NewManager(log Snapshotter, cfg Config, logger zerolog.Logger) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if log == nil {
		return nil, fmt.Errorf("backup: nil lead log")
	}
	if strings.TrimSpace(log.Path()) == "" {
		return nil, fmt.Errorf("backup: lead log path is empty")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, fmt.Errorf("backup: local-dir is required when backup is enabled")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("backup: create local-dir: %w", err)
	}

	var uploader Uploader
	if strings.TrimSpace(cfg.BucketURL) != "" {
		s3u, err := NewS3Uploader(S3Config{
			BucketURL:    cfg.BucketURL,
			Endpoint:     cfg.S3Endpoint,
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
			SessionToken: cfg.S3SessionToken,
			UseSSL:       cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("backup: init s3 uploader: %w", err)
		}
		uploader = s3u
	}

	m := newManager(log, cfg, uploader, logger)

	// Startup snapshot to reduce recovery point after restarts.
	if err := m.RunOnce(m.ctx); err != nil {
		m.logger.Warn().Err(err).Msg("startup snapshot failed")
	}

	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func newManager(log Snapshotter, cfg Config, uploader Uploader, logger zerolog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		log:      log,
		cfg:      cfg,
		uploader: uploader,
		logger:   logger.With().Str("component", "backup").Logger(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.RunOnce(m.ctx); err != nil {
				m.logger.Warn().Err(err).Msg("periodic snapshot failed")
			}
		case <-m.done:
			return
		}
	}
}

// RunOnce creates one local snapshot, uploads it when configured, and prunes
// old local copies. A lead log that has not been created yet is skipped.
func (m *Manager) RunOnce(ctx context.Context) error {
	fileName := snapshotPrefix + m.now().UTC().Format(snapshotLayout) + snapshotExt
	localPath := filepath.Join(m.cfg.LocalDir, fileName)

	if err := m.log.SnapshotTo(localPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.logger.Debug().Msg("no leads yet, snapshot skipped")
			return nil
		}
		return fmt.Errorf("snapshot: %w", err)
	}
	m.logger.Info().Str("path", localPath).Msg("created snapshot")

	if m.uploader != nil {
		if err := m.uploader.UploadFile(ctx, localPath); err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		m.logger.Info().Str("file", fileName).Msg("uploaded snapshot")
	}

	if err := pruneLocalBackups(m.cfg.LocalDir, m.cfg.KeepLast); err != nil {
		return fmt.Errorf("prune local backups: %w", err)
	}
	return nil
}

// Stop terminates the periodic loop and cancels any in-flight upload.
func (m *Manager) Stop() {
	m.cancel()
	close(m.done)
	m.wg.Wait()
}

func pruneLocalBackups(localDir string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(localDir, snapshotPrefix+"*"+snapshotExt))
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	sort.Slice(matches, func(i, j int) bool {
		// timestamp is embedded in filename and lexical sort matches chronology
		return matches[i] > matches[j]
	})

	for _, oldPath := range matches[keepLast:] {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
