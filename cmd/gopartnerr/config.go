package main

import (
	"time"

	"github.com/gopartnerr/zeyatek/internal/model"
)

const (
	defaultAddr           = "127.0.0.1:5114"
	defaultStaticDir      = "static"
	defaultLeadLogPath    = model.DefaultLeadLogPath
	defaultDestination    = model.DefaultDestination
	defaultSMTPPort       = model.DefaultRelayPort
	defaultSMTPTimeout    = model.DefaultRelayTimeout
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
	defaultBackupInterval = 6 * time.Hour
	defaultBackupLocalDir = "backups"
	defaultBackupKeepLast = 24
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	To              string        `mapstructure:"to"`
	SMTPHost        string        `mapstructure:"smtp-host"`
	SMTPPort        int           `mapstructure:"smtp-port"`
	SMTPUser        string        `mapstructure:"smtp-user"`
	SMTPPass        string        `mapstructure:"smtp-pass"`
	SMTPFrom        string        `mapstructure:"smtp-from"`
	SMTPTimeout     time.Duration `mapstructure:"smtp-timeout"`
	SMTPRequireTLS  bool          `mapstructure:"smtp-require-tls"`
	SMTPImplicitTLS bool          `mapstructure:"smtp-implicit-tls"`

	Addr        string `mapstructure:"addr"`
	StaticDir   string `mapstructure:"static-dir"`
	ContentPath string `mapstructure:"content-path"`
	LeadLogPath string `mapstructure:"lead-log-path"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	LogFile   string `mapstructure:"log-file"`

	BackupEnabled        bool          `mapstructure:"backup-enabled"`
	BackupInterval       time.Duration `mapstructure:"backup-interval"`
	BackupLocalDir       string        `mapstructure:"backup-local-dir"`
	BackupKeepLast       int           `mapstructure:"backup-keep-last"`
	BackupBucketURL      string        `mapstructure:"backup-bucket-url"`
	BackupS3Endpoint     string        `mapstructure:"backup-s3-endpoint"`
	BackupS3Region       string        `mapstructure:"backup-s3-region"`
	BackupS3AccessKey    string        `mapstructure:"backup-s3-access-key"`
	BackupS3SecretKey    string        `mapstructure:"backup-s3-secret-key"`
	BackupS3SessionToken string        `mapstructure:"backup-s3-session-token"`
	BackupS3UseSSL       bool          `mapstructure:"backup-s3-use-ssl"`

	ConfigPath string `mapstructure:"-"` // not from config file
}
