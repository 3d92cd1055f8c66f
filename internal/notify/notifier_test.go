package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/gopartnerr/zeyatek/internal/model"
	"github.com/rs/zerolog"
)

var testLead = model.Lead{
	Name:    "Ana",
	Email:   "ana@x.com",
	Message: "Need a proposal",
}

func relayConfig(host string, port int) Config {
	return Config{
		Host:     host,
		Port:     port,
		User:     "relay-user@gopartnerr.com",
		Password: "s3cret",
		To:       "info@gopartnerr.com",
		Timeout:  5 * time.Second,
	}
}

func TestConfigEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
		want bool
	}{
		{name: "complete", cfg: Config{Host: "smtp.example.com", User: "u", Password: "p"}, want: true},
		{name: "missing host", cfg: Config{User: "u", Password: "p"}},
		{name: "missing user", cfg: Config{Host: "smtp.example.com", Password: "p"}},
		{name: "missing password", cfg: Config{Host: "smtp.example.com", User: "u"}},
		{name: "blank host", cfg: Config{Host: "  ", User: "u", Password: "p"}},
		{name: "empty", cfg: Config{}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Fatalf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotifyNotAttemptedNeverConnects(t *testing.T) {
	listener, host, port := startCountingListener(t)

	incomplete := []Config{
		{Host: host, Port: port, User: "u"},
		{Host: host, Port: port, Password: "p"},
		{Port: port, User: "u", Password: "p"},
	}
	for _, cfg := range incomplete {
		n := New(cfg, zerolog.Nop())
		res := n.Notify(context.Background(), testLead)
		if res.Status != model.NotAttempted {
			t.Fatalf("Notify status = %v, want not_attempted", res.Status)
		}
		if res.Reason != nil {
			t.Fatalf("Notify reason = %v, want nil", res.Reason)
		}
		if n.Relay() != "" {
			t.Fatalf("Relay() = %q, want empty", n.Relay())
		}
	}

	// Give a stray dial a moment to land before checking.
	time.Sleep(50 * time.Millisecond)
	if got := listener.accepted(); got != 0 {
		t.Fatalf("accepted connections = %d, want 0", got)
	}
}

func TestNotifyDelivered(t *testing.T) {
	relay := &fakeRelay{user: "relay-user@gopartnerr.com", password: "s3cret"}
	host, port := startFakeRelay(t, relay)

	n := New(relayConfig(host, port), zerolog.Nop())
	res := n.Notify(context.Background(), testLead)
	if res.Status != model.Delivered {
		t.Fatalf("Notify status = %v (reason %v), want delivered", res.Status, res.Reason)
	}
	if !res.Delivered() {
		t.Fatal("Delivered() = false")
	}

	msgs := relay.received()
	if len(msgs) != 1 {
		t.Fatalf("relayed messages = %d, want 1", len(msgs))
	}
	got := msgs[0]
	if got.from != "relay-user@gopartnerr.com" {
		t.Errorf("envelope from = %q", got.from)
	}
	if diff := cmp.Diff([]string{"info@gopartnerr.com"}, got.to); diff != "" {
		t.Errorf("envelope to mismatch (-want +got):\n%s", diff)
	}

	parsed, err := mail.ReadMessage(bytes.NewReader(got.data))
	if err != nil {
		t.Fatalf("parse relayed message: %v", err)
	}
	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	if err != nil {
		t.Fatalf("decode subject: %v", err)
	}
	if subject != "New Lead — ZEYATEK" {
		t.Errorf("subject = %q", subject)
	}
	if rt := parsed.Header.Get("Reply-To"); rt != "<ana@x.com>" {
		t.Errorf("Reply-To = %q", rt)
	}
	body, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	if err != nil {
		t.Fatalf("decode body: %v", err)
	}
	gotBody := strings.TrimRight(strings.ReplaceAll(string(body), "\r\n", "\n"), "\n")
	if wantBody := Body(testLead); gotBody != wantBody {
		t.Errorf("body = %q, want %q", gotBody, wantBody)
	}
}

func TestNotifyFailedOnAuthRejection(t *testing.T) {
	relay := &fakeRelay{user: "relay-user@gopartnerr.com", password: "other"}
	host, port := startFakeRelay(t, relay)

	n := New(relayConfig(host, port), zerolog.Nop())
	res := n.Notify(context.Background(), testLead)
	if res.Status != model.Failed {
		t.Fatalf("Notify status = %v, want failed", res.Status)
	}
	if res.Reason == nil || !strings.Contains(res.Reason.Error(), "notify: auth") {
		t.Fatalf("Notify reason = %v, want auth failure", res.Reason)
	}
	if len(relay.received()) != 0 {
		t.Fatal("relay received a message after failed auth")
	}
}

func TestNotifyFailedOnUnreachableRelay(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	_ = ln.Close()

	n := New(relayConfig(addr.IP.String(), addr.Port), zerolog.Nop())
	res := n.Notify(context.Background(), testLead)
	if res.Status != model.Failed {
		t.Fatalf("Notify status = %v, want failed", res.Status)
	}
	if res.Reason == nil || !strings.Contains(res.Reason.Error(), "notify: dial") {
		t.Fatalf("Notify reason = %v, want dial failure", res.Reason)
	}
}

func TestNotifyRequireTLSWithoutStartTLS(t *testing.T) {
	relay := &fakeRelay{user: "relay-user@gopartnerr.com", password: "s3cret"}
	host, port := startFakeRelay(t, relay)

	cfg := relayConfig(host, port)
	cfg.RequireTLS = true
	res := New(cfg, zerolog.Nop()).Notify(context.Background(), testLead)
	if res.Status != model.Failed {
		t.Fatalf("Notify status = %v, want failed", res.Status)
	}
	if res.Reason == nil || !strings.Contains(res.Reason.Error(), "notify: starttls") {
		t.Fatalf("Notify reason = %v, want starttls failure", res.Reason)
	}
	if len(relay.received()) != 0 {
		t.Fatal("credentials sent over plaintext despite RequireTLS")
	}
}

func TestNotifyDeliveredOverStartTLS(t *testing.T) {
	relay := &fakeRelay{user: "relay-user@gopartnerr.com", password: "s3cret"}
	host, port, pool := startFakeTLSRelay(t, relay, false)

	cfg := relayConfig(host, port)
	cfg.RequireTLS = true
	cfg.TLSConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}

	res := New(cfg, zerolog.Nop()).Notify(context.Background(), testLead)
	if res.Status != model.Delivered {
		t.Fatalf("Notify status = %v (reason %v), want delivered", res.Status, res.Reason)
	}
	msgs := relay.received()
	if len(msgs) != 1 {
		t.Fatalf("relayed messages = %d, want 1", len(msgs))
	}
	if !msgs[0].tls {
		t.Fatal("message relayed without TLS")
	}
}

func TestNotifyDeliveredOverImplicitTLS(t *testing.T) {
	relay := &fakeRelay{user: "relay-user@gopartnerr.com", password: "s3cret"}
	host, port, pool := startFakeTLSRelay(t, relay, true)

	cfg := relayConfig(host, port)
	cfg.ImplicitTLS = true
	cfg.RequireTLS = true
	cfg.TLSConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}

	res := New(cfg, zerolog.Nop()).Notify(context.Background(), testLead)
	if res.Status != model.Delivered {
		t.Fatalf("Notify status = %v (reason %v), want delivered", res.Status, res.Reason)
	}
	msgs := relay.received()
	if len(msgs) != 1 || !msgs[0].tls {
		t.Fatalf("relayed messages = %+v, want one over TLS", msgs)
	}
}

func TestNotifyFailedOnCertificateNameMismatch(t *testing.T) {
	relay := &fakeRelay{user: "relay-user@gopartnerr.com", password: "s3cret"}
	host, port, pool := startFakeTLSRelay(t, relay, false)

	cfg := relayConfig(host, port)
	cfg.RequireTLS = true
	cfg.TLSConfig = &tls.Config{RootCAs: pool, ServerName: "smtp.wrong.example", MinVersion: tls.VersionTLS12}

	res := New(cfg, zerolog.Nop()).Notify(context.Background(), testLead)
	if res.Status != model.Failed {
		t.Fatalf("Notify status = %v, want failed", res.Status)
	}
	if res.Reason == nil || !strings.Contains(res.Reason.Error(), "notify: starttls") {
		t.Fatalf("Notify reason = %v, want starttls failure", res.Reason)
	}
	if len(relay.received()) != 0 {
		t.Fatal("message relayed over an unverified connection")
	}
}

func TestImplicitTLSPort(t *testing.T) {
	t.Parallel()

	if !(Config{Port: 465}).implicitTLS() {
		t.Error("port 465 should imply TLS")
	}
	if (Config{Port: 587}).implicitTLS() {
		t.Error("port 587 should not imply TLS")
	}
	if !(Config{Port: 2525, ImplicitTLS: true}).implicitTLS() {
		t.Error("ImplicitTLS should force TLS")
	}
}

func TestNotifyHonorsCanceledContext(t *testing.T) {
	relay := &fakeRelay{user: "relay-user@gopartnerr.com", password: "s3cret"}
	host, port := startFakeRelay(t, relay)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(relayConfig(host, port), zerolog.Nop()).Notify(ctx, testLead)
	if res.Status != model.Failed {
		t.Fatalf("Notify status = %v, want failed", res.Status)
	}
}

func TestBuildMessageHeaders(t *testing.T) {
	cfg := Config{From: "Sales <sales@gopartnerr.com>", To: "info@gopartnerr.com"}
	lead := model.Lead{Name: "Eve", Email: "not an address\r\nBcc: x@y.z", Message: "hi"}
	now := time.Date(2025, 8, 12, 10, 0, 0, 0, time.UTC)

	raw, err := buildMessage(cfg, lead, now)
	if err != nil {
		t.Fatalf("buildMessage: %v", err)
	}
	parsed, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("parse message: %v", err)
	}
	if parsed.Header.Get("Bcc") != "" {
		t.Fatal("visitor input injected a header")
	}
	if parsed.Header.Get("Reply-To") != "" {
		t.Fatalf("Reply-To = %q, want none for unparsable address", parsed.Header.Get("Reply-To"))
	}
	if id := parsed.Header.Get("Message-ID"); !strings.HasSuffix(id, "@gopartnerr.com>") {
		t.Fatalf("Message-ID = %q", id)
	}
	if parsed.Header.Get("Date") != now.Format(time.RFC1123Z) {
		t.Fatalf("Date = %q", parsed.Header.Get("Date"))
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{User: "relay@gopartnerr.com"}.withDefaults()
	if cfg.Port != model.DefaultRelayPort {
		t.Errorf("Port = %d, want %d", cfg.Port, model.DefaultRelayPort)
	}
	if cfg.From != "relay@gopartnerr.com" {
		t.Errorf("From = %q, want relay user", cfg.From)
	}
	if cfg.To != model.DefaultDestination {
		t.Errorf("To = %q", cfg.To)
	}
	if cfg.Timeout != model.DefaultRelayTimeout {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
}

func TestBodyFormat(t *testing.T) {
	want := "Name: Ana\nEmail: ana@x.com\n\nMessage:\nNeed a proposal"
	if got := Body(testLead); got != want {
		t.Fatalf("Body = %q, want %q", got, want)
	}
}
