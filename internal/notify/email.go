package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
)

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// EmailSender sends HTML email over SMTP
type EmailSender struct {
	logger *zap.Logger
	cfg    EmailConfig
}

// NewEmailSender creates a new email sender
func NewEmailSender(cfg EmailConfig, logger *zap.Logger) *EmailSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &EmailSender{
		logger: logger.Named("email"),
		cfg:    cfg,
	}
}

// Channel implements Sender
func (s *EmailSender) Channel() model.Channel { return model.ChannelEmail }

// Send implements Sender
func (s *EmailSender) Send(ctx context.Context, destination string, msg model.RenderedMessage) error {
	if s.cfg.Host == "" || s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("%w: smtp credentials missing", ErrNotConfigured)
	}
	to, err := ValidateEmail(destination)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.deliver(ctx, to, msg); err != nil {
		return classifySMTP(err)
	}

	s.logger.Debug("Email sent", zap.String("to", Mask(to)))
	return nil
}

func (s *EmailSender) deliver(ctx context.Context, to string, msg model.RenderedMessage) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return err
		}
	}
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return err
		}
	}

	if err := c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(s.cfg.From, to, msg)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func buildMessage(from, to string, msg model.RenderedMessage) []byte {
	body := msg.HTML
	contentType := "text/html; charset=UTF-8"
	if body == "" {
		body = msg.Body
		contentType = "text/plain; charset=UTF-8"
	}

	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func classifySMTP(err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return fmt.Errorf("%w: smtp %d: %s", ErrRejected, protoErr.Code, protoErr.Msg)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
