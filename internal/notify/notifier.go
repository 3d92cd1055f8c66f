package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/gopartnerr/zeyatek/internal/model"
	"github.com/rs/zerolog"
)

// Notifier relays accepted leads through an SMTP relay. It is best-effort:
// every failure is folded into the returned DeliveryResult and nothing is
// retried.
type Notifier struct {
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// New returns a notifier for cfg. A notifier with incomplete credentials is
// valid and reports NotAttempted for every lead.
func New(cfg Config, logger zerolog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "notify").Logger(),
		now:    time.Now,
	}
}

// Enabled reports whether delivery will be attempted.
func (n *Notifier) Enabled() bool {
	return n.cfg.Enabled()
}

// Relay returns host:port of the configured relay, or "" when disabled.
func (n *Notifier) Relay() string {
	if !n.Enabled() {
		return ""
	}
	return net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
}

// Notify attempts one delivery of lead.
func (n *Notifier) Notify(ctx context.Context, lead model.Lead) model.DeliveryResult {
	if !n.Enabled() {
		return model.DeliveryResult{Status: model.NotAttempted}
	}

	start := n.now()
	msg, err := buildMessage(n.cfg, lead, start)
	if err == nil {
		err = n.deliver(ctx, msg)
	}
	if err != nil {
		n.logger.Warn().Err(err).Str("relay", n.Relay()).Msg("lead notification failed")
		return model.DeliveryResult{Status: model.Failed, Reason: err}
	}

	n.logger.Info().
		Str("relay", n.Relay()).
		Dur("elapsed", time.Since(start)).
		Msg("lead notification delivered")
	return model.DeliveryResult{Status: model.Delivered}
}

func (n *Notifier) deliver(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()

	addr := n.Relay()
	conn, err := n.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("notify: dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	// Unblock any in-flight read or write when the request goes away.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	c, err := n.newClient(conn)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()
	c.CommandTimeout = n.cfg.Timeout
	c.SubmissionTimeout = n.cfg.Timeout

	if err := c.Auth(sasl.NewPlainClient("", n.cfg.User, n.cfg.Password)); err != nil {
		return fmt.Errorf("notify: auth: %w", err)
	}
	if err := c.SendMail(envelopeAddress(n.cfg.From), []string{envelopeAddress(n.cfg.To)}, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	// The relay has accepted the message; a failed QUIT does not undo that.
	if err := c.Quit(); err != nil {
		n.logger.Debug().Err(err).Msg("relay quit")
	}
	return nil
}

// newClient starts the SMTP session on conn. Plaintext connections are
// upgraded with STARTTLS when RequireTLS is set; the session fails if the
// relay does not offer it.
func (n *Notifier) newClient(conn net.Conn) (*smtp.Client, error) {
	if _, implicit := conn.(*tls.Conn); implicit || !n.cfg.RequireTLS {
		return smtp.NewClient(conn), nil
	}
	c, err := smtp.NewClientStartTLS(conn, n.cfg.tlsConfig())
	if err != nil {
		return nil, fmt.Errorf("notify: starttls: %w", err)
	}
	// The handshake runs on the next command; EHLO now so a rejected
	// certificate is reported as a STARTTLS failure.
	if err := c.Hello("localhost"); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("notify: starttls: %w", err)
	}
	return c, nil
}

func (n *Notifier) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	if n.cfg.implicitTLS() {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: n.cfg.tlsConfig()}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}
