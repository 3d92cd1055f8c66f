package notify

import (
	"crypto/tls"
	"strings"
	"time"

	"github.com/gopartnerr/zeyatek/internal/model"
)

const implicitTLSPort = 465

// Config is the relay delivery configuration. It is read once at startup.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string // defaults to User
	To       string

	// Timeout bounds the whole relay session, dial included.
	Timeout time.Duration
	// RequireTLS upgrades plaintext sessions with STARTTLS and fails delivery
	// when the relay does not offer it. When false the session is not upgraded.
	RequireTLS bool
	// ImplicitTLS dials the relay over TLS. Port 465 always implies it.
	ImplicitTLS bool
	// TLSConfig overrides the client TLS settings. ServerName defaults to Host.
	TLSConfig *tls.Config
}

// Enabled reports whether host, user and password are all present. Any other
// combination disables notification without error.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Host) != "" &&
		strings.TrimSpace(c.User) != "" &&
		c.Password != ""
}

func (c Config) withDefaults() Config {
	if c.Port <= 0 {
		c.Port = model.DefaultRelayPort
	}
	if c.Timeout <= 0 {
		c.Timeout = model.DefaultRelayTimeout
	}
	if strings.TrimSpace(c.From) == "" {
		c.From = c.User
	}
	if strings.TrimSpace(c.To) == "" {
		c.To = model.DefaultDestination
	}
	return c
}

func (c Config) implicitTLS() bool {
	return c.ImplicitTLS || c.Port == implicitTLSPort
}

func (c Config) tlsConfig() *tls.Config {
	var cfg *tls.Config
	if c.TLSConfig != nil {
		cfg = c.TLSConfig.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = c.Host
	}
	return cfg
}
