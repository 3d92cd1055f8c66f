package notify

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"io"
	"math/big"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// fakeRelay is an in-process SMTP relay that accepts one user and records
// every message it receives.
type fakeRelay struct {
	user     string
	password string

	mu       sync.Mutex
	messages []relayedMessage
	authErrs int
}

type relayedMessage struct {
	from string
	to   []string
	data []byte
	tls  bool
}

func (r *fakeRelay) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &relaySession{relay: r, conn: c}, nil
}

func (r *fakeRelay) received() []relayedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]relayedMessage(nil), r.messages...)
}

type relaySession struct {
	relay  *fakeRelay
	conn   *smtp.Conn
	authed bool
	msg    relayedMessage
}

func (s *relaySession) AuthMechanisms() []string {
	return []string{sasl.Plain}
}

func (s *relaySession) Auth(_ string) (sasl.Server, error) {
	return sasl.NewPlainServer(func(_, username, password string) error {
		if username != s.relay.user || password != s.relay.password {
			s.relay.mu.Lock()
			s.relay.authErrs++
			s.relay.mu.Unlock()
			return errors.New("invalid credentials")
		}
		s.authed = true
		return nil
	}), nil
}

func (s *relaySession) Mail(from string, _ *smtp.MailOptions) error {
	if !s.authed {
		return smtp.ErrAuthRequired
	}
	s.msg.from = from
	return nil
}

func (s *relaySession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.msg.to = append(s.msg.to, to)
	return nil
}

func (s *relaySession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.msg.data = data
	_, s.msg.tls = s.conn.TLSConnectionState()
	s.relay.mu.Lock()
	s.relay.messages = append(s.relay.messages, s.msg)
	s.relay.mu.Unlock()
	return nil
}

func (s *relaySession) Reset() {
	s.msg = relayedMessage{}
}

func (s *relaySession) Logout() error {
	return nil
}

// startFakeRelay serves relay in plaintext on a loopback port and returns
// host and port.
func startFakeRelay(t *testing.T, relay *fakeRelay) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return serveFakeRelay(t, relay, ln, nil)
}

// startFakeTLSRelay serves relay with a self-signed certificate for
// 127.0.0.1. With implicit set the listener speaks TLS from the first byte;
// otherwise the relay offers STARTTLS. The returned pool trusts the
// certificate.
func startFakeTLSRelay(t *testing.T, relay *fakeRelay, implicit bool) (string, int, *x509.CertPool) {
	t.Helper()

	cert, pool := selfSignedCert(t)
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if implicit {
		ln = tls.NewListener(ln, tlsCfg)
	}
	host, port := serveFakeRelay(t, relay, ln, tlsCfg)
	return host, port, pool
}

func serveFakeRelay(t *testing.T, relay *fakeRelay, ln net.Listener, tlsCfg *tls.Config) (string, int) {
	t.Helper()

	srv := smtp.NewServer(relay)
	srv.Domain = "localhost"
	srv.AllowInsecureAuth = true
	srv.TLSConfig = tlsCfg
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Close() })

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func selfSignedCert(t *testing.T) (tls.Certificate, *x509.CertPool) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "relay.test"},
		DNSNames:              []string{"relay.test"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(leaf)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, pool
}

// countingListener accepts and immediately closes connections, counting them.
type countingListener struct {
	ln    net.Listener
	mu    sync.Mutex
	count int
}

func startCountingListener(t *testing.T) (*countingListener, string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	cl := &countingListener{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			cl.mu.Lock()
			cl.count++
			cl.mu.Unlock()
			_ = conn.Close()
		}
	}()
	t.Cleanup(func() { _ = ln.Close() })

	addr := ln.Addr().(*net.TCPAddr)
	return cl, addr.IP.String(), addr.Port
}

func (c *countingListener) accepted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
