package filter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/mail"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/mikey/phishguard/internal/config"
	"github.com/mikey/phishguard/internal/core"
	"github.com/mikey/phishguard/internal/ports"
	"go.uber.org/zap"
)

// EmailDetector runs email detection for the mail intake adapters
type EmailDetector interface {
	DetectEmail(ctx context.Context, email core.EmailRequest) (core.DetectionResult, error)
}

// deliverFunc hands a processed message to the next hop
type deliverFunc func(sender string, recipients []string, data []byte) error

// SMTPFilter implements an SMTP content filter: it accepts mail, stamps the
// phishing verdict into the headers and relays it downstream
type SMTPFilter struct {
	detector EmailDetector
	cfg      config.SMTPConfig
	logger   *zap.Logger
	deliver  deliverFunc

	mu       sync.Mutex
	server   *smtp.Server
	listener net.Listener
}

var _ ports.EmailFilter = (*SMTPFilter)(nil)

// NewSMTPFilter creates a new SMTP content filter
func NewSMTPFilter(detector EmailDetector, cfg config.SMTPConfig, logger *zap.Logger) *SMTPFilter {
	if cfg.SubjectPrefix == "" && cfg.ModifySubject {
		cfg.SubjectPrefix = "[PHISHING] "
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}

	f := &SMTPFilter{
		detector: detector,
		cfg:      cfg,
		logger:   logger,
	}
	f.deliver = f.relay
	return f
}

// Start listens on the configured address and serves in the background
func (f *SMTPFilter) Start() error {
	ln, err := net.Listen("tcp", f.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.cfg.ListenAddress, err)
	}

	server := smtp.NewServer(&smtpBackend{filter: f})
	server.Domain = "localhost"
	server.ReadTimeout = 30 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.MaxMessageBytes = 30 * 1024 * 1024
	server.MaxRecipients = 50

	f.mu.Lock()
	f.server = server
	f.listener = ln
	f.mu.Unlock()

	f.logger.Info("SMTP filter starting", zap.String("address", ln.Addr().String()))

	go func() {
		if err := server.Serve(ln); err != nil && err != smtp.ErrServerClosed {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Addr returns the bound listen address once started
func (f *SMTPFilter) Addr() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return f.cfg.ListenAddress
	}
	return f.listener.Addr().String()
}

// Stop stops the SMTP filter
func (f *SMTPFilter) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessEmail runs detection on a single message
func (f *SMTPFilter) ProcessEmail(ctx context.Context, email core.EmailRequest) (core.DetectionResult, error) {
	return f.detector.DetectEmail(ctx, email)
}

// relay sends the processed message to the downstream MTA
func (f *SMTPFilter) relay(sender string, recipients []string, data []byte) error {
	if !f.cfg.RelayEnabled {
		f.logger.Warn("Relay disabled, message accepted but not forwarded",
			zap.String("sender", sender))
		return nil
	}

	addr := net.JoinHostPort(f.cfg.RelayAddress, strconv.Itoa(f.cfg.RelayPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	accepted := 0
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		accepted++
	}
	if accepted == 0 {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message is already queued downstream
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// process analyzes one raw message and returns the rewritten message, or
// an SMTP error when the message is to be refused
func (f *SMTPFilter) process(sender string, raw []byte) ([]byte, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		f.logger.Warn("Failed to parse email message", zap.Error(err))
		return nil, &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	subject := decodeHeader(msg.Header.Get("Subject"))
	body, err := ExtractText(msg)
	if err != nil {
		f.logger.Warn("Failed to extract text content", zap.Error(err))
		body = ""
	}

	from := sender
	if from == "" {
		from = decodeHeader(msg.Header.Get("From"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.Timeout)
	defer cancel()

	result, err := f.detector.DetectEmail(ctx, core.EmailRequest{From: from, Subject: subject, Body: body})
	if err != nil {
		f.logger.Error("Failed to analyze email, passing it through", zap.Error(err), zap.String("sender", from))
		return rewriteMessage(raw, []string{"X-Phish-Analysis-Error: " + sanitizeHeaderValue(err.Error())}, ""), nil
	}

	phishing := result.Status == core.StatusPhishing
	if phishing && f.cfg.BlockPhishing {
		f.logger.Info("Rejecting phishing email",
			zap.String("sender", from),
			zap.Int("confidence", result.Confidence),
			zap.String("label", result.Label))
		return nil, &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      fmt.Sprintf("Rejected as phishing (confidence: %d)", result.Confidence),
		}
	}

	headers := []string{
		f.cfg.StatusHeader + ": " + string(result.Status),
		f.cfg.ConfidenceHeader + ": " + strconv.Itoa(result.Confidence),
		f.cfg.LabelHeader + ": " + sanitizeHeaderValue(result.Label),
	}

	newSubject := ""
	if phishing && f.cfg.ModifySubject && !strings.HasPrefix(subject, f.cfg.SubjectPrefix) {
		newSubject = f.cfg.SubjectPrefix + subject
	}

	f.logger.Info("Processed email",
		zap.String("sender", from),
		zap.String("status", string(result.Status)),
		zap.Int("confidence", result.Confidence))

	return rewriteMessage(raw, headers, newSubject), nil
}

// rewriteMessage prepends extra header lines and, when newSubject is set,
// replaces the Subject header. Header order and the body are preserved.
func rewriteMessage(raw []byte, extra []string, newSubject string) []byte {
	var out bytes.Buffer
	for _, h := range extra {
		out.WriteString(h)
		out.WriteString("\r\n")
	}

	reader := bufio.NewReader(bytes.NewReader(raw))
	replacedSubject := false
	skipping := false

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			break
		}

		trimmed := bytes.TrimRight(line, "\r\n")
		if len(trimmed) == 0 {
			// end of headers
			if newSubject != "" && !replacedSubject {
				writeSubject(&out, newSubject)
			}
			out.Write(line)
			_, _ = io.Copy(&out, reader)
			return out.Bytes()
		}

		continuation := line[0] == ' ' || line[0] == '\t'
		if continuation && skipping {
			continue
		}
		skipping = false

		if newSubject != "" && !continuation && isHeader(trimmed, "Subject") {
			writeSubject(&out, newSubject)
			replacedSubject = true
			skipping = true
			continue
		}

		out.Write(line)
		if err != nil {
			break
		}
	}

	return out.Bytes()
}

func isHeader(line []byte, name string) bool {
	colon := bytes.IndexByte(line, ':')
	return colon > 0 && strings.EqualFold(strings.TrimSpace(string(line[:colon])), name)
}

func writeSubject(out *bytes.Buffer, subject string) {
	out.WriteString("Subject: ")
	out.WriteString(mime.QEncoding.Encode("utf-8", subject))
	out.WriteString("\r\n")
}

// sanitizeHeaderValue keeps a value on a single header line
func sanitizeHeaderValue(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *SMTPFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *SMTPFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data analyzes the message and forwards it
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	processed, err := s.filter.process(s.sender, raw)
	if err != nil {
		return err
	}

	if err := s.filter.deliver(s.sender, s.recipients, processed); err != nil {
		s.filter.logger.Error("Failed to relay message",
			zap.Error(err),
			zap.String("sender", s.sender))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 4, 0},
			Message:      "Downstream delivery failed, try again later",
		}
	}
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
