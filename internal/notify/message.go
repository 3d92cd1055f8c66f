package notify

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gopartnerr/zeyatek/internal/model"
)

// Subject is the subject line of every lead notification.
var Subject = "New Lead — " + model.Brand

// Body renders the plain-text notification body with the fields verbatim.
func Body(lead model.Lead) string {
	return fmt.Sprintf("Name: %s\nEmail: %s\n\nMessage:\n%s", lead.Name, lead.Email, lead.Message)
}

func buildMessage(cfg Config, lead model.Lead, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, "From", cfg.From)
	writeHeader(&buf, "To", cfg.To)
	if replyTo, ok := replyAddress(lead.Email); ok {
		writeHeader(&buf, "Reply-To", replyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID(cfg.From))
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", "text/plain; charset=utf-8")
	writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	body := strings.ReplaceAll(Body(lead), "\r\n", "\n")
	if _, err := qp.Write([]byte(strings.ReplaceAll(body, "\n", "\r\n"))); err != nil {
		return nil, fmt.Errorf("notify: encode body: %w", err)
	}
	if err := qp.Close(); err != nil {
		return nil, fmt.Errorf("notify: encode body: %w", err)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(stripNewlines(value))
	buf.WriteString("\r\n")
}

// replyAddress returns the visitor address as a header value when it parses
// as a single mailbox. Visitor input never reaches headers unparsed.
func replyAddress(raw string) (string, bool) {
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		return "", false
	}
	return (&mail.Address{Address: addr.Address}).String(), true
}

func messageID(from string) string {
	domain := "localhost"
	addr := envelopeAddress(from)
	if at := strings.LastIndexByte(addr, '@'); at >= 0 && at < len(addr)-1 {
		domain = addr[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// envelopeAddress extracts the bare mailbox from a header-style address such
// as "Sales <sales@example.com>".
func envelopeAddress(raw string) string {
	if addr, err := mail.ParseAddress(raw); err == nil {
		return addr.Address
	}
	return strings.TrimSpace(raw)
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}
