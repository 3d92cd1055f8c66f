package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gopartnerr/zeyatek/internal/backup"
	"github.com/gopartnerr/zeyatek/internal/catalog"
	"github.com/gopartnerr/zeyatek/internal/httpserver"
	"github.com/gopartnerr/zeyatek/internal/intake"
	"github.com/gopartnerr/zeyatek/internal/leadlog"
	"github.com/gopartnerr/zeyatek/internal/notify"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// runServer wires the site together and blocks until SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	logger, cleanupLogger, err := configureLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to configure logger: %w", err)
	}
	defer cleanupLogger()

	reg, err := loadCatalog(cfg.ContentPath)
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}

	leads, err := leadlog.Open(cfg.LeadLogPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open lead log: %w", err)
	}

	notifier := notify.New(notify.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPass,
		From:        cfg.SMTPFrom,
		To:          cfg.To,
		Timeout:     cfg.SMTPTimeout,
		RequireTLS:  cfg.SMTPRequireTLS,
		ImplicitTLS: cfg.SMTPImplicitTLS,
	}, logger)
	if !notifier.Enabled() {
		logger.Warn().Msg("smtp credentials incomplete, leads will only be saved locally")
	}

	service := intake.NewService(leads, notifier, leads.Path(), logger)

	// Start periodic lead log snapshots when enabled.
	backupManager, err := backup.NewManager(leads, backup.Config{
		Enabled:        cfg.BackupEnabled,
		Interval:       cfg.BackupInterval,
		LocalDir:       cfg.BackupLocalDir,
		KeepLast:       cfg.BackupKeepLast,
		BucketURL:      cfg.BackupBucketURL,
		S3Endpoint:     cfg.BackupS3Endpoint,
		S3Region:       cfg.BackupS3Region,
		S3AccessKey:    cfg.BackupS3AccessKey,
		S3SecretKey:    cfg.BackupS3SecretKey,
		S3SessionToken: cfg.BackupS3SessionToken,
		S3UseSSL:       cfg.BackupS3UseSSL,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}
	if backupManager != nil {
		defer backupManager.Stop()
	}

	site := httpserver.NewServer(httpserver.Config{
		Addr:                 cfg.Addr,
		StaticDir:            cfg.StaticDir,
		NotificationsEnabled: notifier.Enabled(),
	}, reg, service, logger)
	if err := site.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	printStartupBanner(cfg, site.Addr(), notifier)
	logger.Info().Str("addr", site.Addr()).Str("lead_log", leads.Path()).Msg("site started")

	err = serveUntilDone(ctx, site)
	signal.Stop(sigCh)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// siteServer is the part of httpserver.Server driven by the process lifecycle.
type siteServer interface {
	Serve() error
	Stop() error
}

// serveUntilDone runs site until ctx is canceled or serving fails. Either way
// the site is stopped before returning; a serve failure is returned.
func serveUntilDone(ctx context.Context, site siteServer) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(site.Serve)
	g.Go(func() error {
		<-gctx.Done()
		return site.Stop()
	})
	return g.Wait()
}

func loadCatalog(path string) (*catalog.Registry, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}

// configureLogger builds the process logger. The returned cleanup closes the
// log file, if any.
func configureLogger(cfg appConfig) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("invalid log-level %q: %w", cfg.LogLevel, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var out io.Writer = os.Stderr
	cleanup := func() {}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
			return zerolog.Nop(), cleanup, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), cleanup, fmt.Errorf("open log file: %w", err)
		}
		out = f
		cleanup = func() { _ = f.Close() }
	}

	if cfg.LogFormat != "json" {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05.000",
			NoColor:    cfg.LogFile != "",
		}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, cleanup, nil
}

func printStartupBanner(cfg appConfig, addr string, notifier *notify.Notifier) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╔═╗╦ ╦╔═╗╔╦╗╔═╗╦╔═
    ╔═╝║╣ ╚╦╝╠═╣ ║ ║╣ ╠╩╗
    ╚═╝╚═╝ ╩ ╩ ╩ ╩ ╚═╝╩ ╩`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	// Gateway
	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Website        %s", check, cyan.Render("http://"+addr)))
	if cfg.StaticDir != "" {
		lines = append(lines, fmt.Sprintf("    %s  Static Files   %s", check, dim.Render(shortenPath(cfg.StaticDir))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Static Files   %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Storage
	lines = append(lines, bold.Render("    Storage"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Lead Log       %s", check, dim.Render(shortenPath(cfg.LeadLogPath))))
	if cfg.BackupEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", check, dim.Render(shortenPath(cfg.BackupLocalDir))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Snapshots      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	// Notifications
	lines = append(lines, bold.Render("    Notifications"))
	lines = append(lines, "")
	if notifier.Enabled() {
		lines = append(lines, fmt.Sprintf("    %s  SMTP Relay     %s", check, cyan.Render(notifier.Relay())))
		lines = append(lines, fmt.Sprintf("    %s  Recipient      %s", check, dim.Render(cfg.To)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  SMTP Relay     %s", dot, dim.Render("not configured (saving only)")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}
	if cfg.ContentPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Content        %s", check, dim.Render(shortenPath(cfg.ContentPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Content        %s", dot, dim.Render("built-in")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
