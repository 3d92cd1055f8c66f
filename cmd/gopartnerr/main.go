package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/gopartnerr/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("ZEYATEK - GoPartnerr site\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	v := viper.New()
	v.SetEnvPrefix("GOPARTNERR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("to", defaultDestination)
	v.SetDefault("smtp-host", "")
	v.SetDefault("smtp-port", defaultSMTPPort)
	v.SetDefault("smtp-user", "")
	v.SetDefault("smtp-pass", "")
	v.SetDefault("smtp-from", "")
	v.SetDefault("smtp-timeout", defaultSMTPTimeout)
	v.SetDefault("smtp-require-tls", true)
	v.SetDefault("smtp-implicit-tls", false)
	v.SetDefault("addr", defaultAddr)
	v.SetDefault("static-dir", defaultStaticDir)
	v.SetDefault("content-path", "")
	v.SetDefault("lead-log-path", defaultLeadLogPath)
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("log-file", "")
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-local-dir", defaultBackupLocalDir)
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)
	v.SetDefault("backup-bucket-url", "")
	v.SetDefault("backup-s3-endpoint", "")
	v.SetDefault("backup-s3-region", "")
	v.SetDefault("backup-s3-access-key", "")
	v.SetDefault("backup-s3-secret-key", "")
	v.SetDefault("backup-s3-session-token", "")
	v.SetDefault("backup-s3-use-ssl", true)

	home, homeErr := os.UserHomeDir()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else if homeErr == nil {
		v.SetConfigFile(filepath.Join(home, ".config", "gopartnerr", "config.yml"))
	}

	if configPath != "" || homeErr == nil {
		if err := v.ReadInConfig(); err != nil {
			var configFileNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
				return cfg, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	if cfg.SMTPPort <= 0 || cfg.SMTPPort > 65535 {
		return cfg, fmt.Errorf("invalid smtp-port: %d", cfg.SMTPPort)
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return cfg, fmt.Errorf("invalid addr %q: %w", cfg.Addr, err)
	}
	if strings.TrimSpace(cfg.LeadLogPath) == "" {
		return cfg, fmt.Errorf("lead-log-path must not be empty")
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return cfg, fmt.Errorf("invalid log-format %q: want console or json", cfg.LogFormat)
	}

	// Expand ~ in file paths
	if homeErr == nil {
		cfg.LeadLogPath = expandHome(home, cfg.LeadLogPath)
		cfg.BackupLocalDir = expandHome(home, cfg.BackupLocalDir)
		cfg.LogFile = expandHome(home, cfg.LogFile)
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
