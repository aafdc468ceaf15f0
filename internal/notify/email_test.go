package notify

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/t77yq/coastal-alert/internal/model"
)

// fakeSMTP is a minimal SMTP server that records one message per session
type fakeSMTP struct {
	ln         net.Listener
	rcptStatus string

	mu       sync.Mutex
	rcpts    []string
	data     []string
	authSeen bool
}

func startFakeSMTP(t *testing.T, rcptStatus string) *fakeSMTP {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeSMTP{ln: ln, rcptStatus: rcptStatus}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeSMTP) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { conn.Write([]byte(line + "\r\n")) }

	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250-localhost")
			reply("250 AUTH PLAIN")
		case strings.HasPrefix(cmd, "AUTH"):
			s.mu.Lock()
			s.authSeen = true
			s.mu.Unlock()
			reply("235 2.7.0 Authentication successful")
		case strings.HasPrefix(cmd, "MAIL FROM"):
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.TrimSpace(line))
			s.mu.Unlock()
			reply(s.rcptStatus)
		case cmd == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = append(s.data, b.String())
			s.mu.Unlock()
			reply("250 OK queued")
		case cmd == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func TestEmailSender_Send(t *testing.T) {
	// Setup
	srv := startFakeSMTP(t, "250 OK")
	s := NewEmailSender(EmailConfig{
		Host:     "127.0.0.1",
		Port:     srv.port(),
		Username: "alerts@example.com",
		Password: "secret",
		Timeout:  2 * time.Second,
	}, zaptest.NewLogger(t))
	require.Equal(t, model.ChannelEmail, s.Channel())

	msg := model.RenderedMessage{Subject: "URGENT: Coastal Evacuation Alert - HIGH Threat Level", HTML: "<p>Evacuate</p>"}
	err := s.Send(context.Background(), "resident@example.com", msg)
	require.NoError(t, err)

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.True(t, srv.authSeen)
	require.Len(t, srv.rcpts, 1)
	assert.Contains(t, srv.rcpts[0], "<resident@example.com>")
	require.Len(t, srv.data, 1)
	assert.Contains(t, srv.data[0], "From: alerts@example.com")
	assert.Contains(t, srv.data[0], "Content-Type: text/html; charset=UTF-8")
	assert.Contains(t, srv.data[0], "<p>Evacuate</p>")
}

func TestEmailSender_Rejected(t *testing.T) {
	srv := startFakeSMTP(t, "550 5.1.1 No such user")
	s := NewEmailSender(EmailConfig{Host: "127.0.0.1", Port: srv.port(), Username: "u@example.com", Password: "p"}, zaptest.NewLogger(t))

	err := s.Send(context.Background(), "ghost@example.com", model.RenderedMessage{Subject: "s", HTML: "b"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "rejected", Reason(err))
}

func TestEmailSender_Timeout(t *testing.T) {
	// A listener that accepts but never greets
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				c.Close()
			}
		}()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	s := NewEmailSender(EmailConfig{
		Host:     "127.0.0.1",
		Port:     port,
		Username: "u@example.com",
		Password: "p",
		Timeout:  100 * time.Millisecond,
	}, zaptest.NewLogger(t))

	start := time.Now()
	err = s.Send(context.Background(), "a@example.com", model.RenderedMessage{})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEmailSender_Validation(t *testing.T) {
	logger := zaptest.NewLogger(t)

	err := NewEmailSender(EmailConfig{Host: "smtp.example.com"}, logger).Send(context.Background(), "a@example.com", model.RenderedMessage{})
	assert.ErrorIs(t, err, ErrNotConfigured)

	err = NewEmailSender(EmailConfig{Host: "smtp.example.com", Username: "u", Password: "p"}, logger).
		Send(context.Background(), "nope", model.RenderedMessage{})
	assert.ErrorIs(t, err, ErrInvalidDestination)
}

func TestBuildMessage(t *testing.T) {
	raw := string(buildMessage("a@example.com", "b@example.com", model.RenderedMessage{Subject: "Plain", Body: "text only"}))
	assert.Contains(t, raw, "Subject: Plain\r\n")
	assert.Contains(t, raw, "Content-Type: text/plain; charset=UTF-8")
	assert.True(t, strings.HasSuffix(raw, "text only\r\n"))
}
