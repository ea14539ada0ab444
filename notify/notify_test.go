package notify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicpulse/authcore"
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func codeNotification() authcore.Notification {
	return authcore.Notification{
		Kind:        authcore.NotificationCode,
		Identity:    "voter@example.org",
		DisplayName: "Ana",
		Purpose:     authcore.PurposeLogin,
		Code:        "482913",
		ExpiresAt:   testNow.Add(10 * time.Minute),
	}
}

func TestRenderCode(t *testing.T) {
	msg, err := Render(codeNotification(), testNow)
	require.NoError(t, err)
	assert.Equal(t, "Your sign-in code", msg.Subject)
	assert.Contains(t, msg.Body, "Hello Ana,")
	assert.Contains(t, msg.Body, "Your code is 482913. It expires in 10 minutes.")
}

func TestRenderRoundsRemainingMinutesUp(t *testing.T) {
	n := codeNotification()
	n.ExpiresAt = testNow.Add(30 * time.Second)
	msg, err := Render(n, testNow)
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "expires in 1 minute.")
}

func TestRenderWelcomeAndUnknown(t *testing.T) {
	msg, err := Render(authcore.Notification{Kind: authcore.NotificationWelcome, DisplayName: "Ana"}, testNow)
	require.NoError(t, err)
	assert.Equal(t, "Welcome", msg.Subject)
	assert.NotContains(t, msg.Body, "code")

	_, err = Render(authcore.Notification{Kind: "sms"}, testNow)
	require.Error(t, err)

	n := codeNotification()
	n.Purpose = "bogus"
	_, err = Render(n, testNow)
	require.Error(t, err)
}

func TestLogWithholdsCodeByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, Log{Logger: logger}.Send(context.Background(), codeNotification()))
	assert.NotContains(t, buf.String(), "482913")
	assert.Contains(t, buf.String(), `"purpose":"login"`)

	buf.Reset()
	require.NoError(t, Log{Logger: logger, IncludeCode: true}.Send(context.Background(), codeNotification()))
	assert.Contains(t, buf.String(), `"code":"482913"`)
}

func TestMultiJoinsErrors(t *testing.T) {
	var calls int
	ok := authcore.NotifierFunc(func(context.Context, authcore.Notification) error { calls++; return nil })
	errA := errors.New("a down")
	bad := authcore.NotifierFunc(func(context.Context, authcore.Notification) error { calls++; return errA })

	err := Multi{ok, nil, bad, ok}.Send(context.Background(), codeNotification())
	require.ErrorIs(t, err, errA)
	assert.Equal(t, 3, calls)

	require.NoError(t, Multi{ok}.Send(context.Background(), codeNotification()))
}

// fakeSMTP accepts one message with no extensions advertised.
type fakeSMTP struct {
	ln   net.Listener
	mu   sync.Mutex
	from string
	rcpt string
	data string
	done chan struct{}
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &fakeSMTP{ln: ln, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	tp := textproto.NewConn(conn)
	_ = tp.PrintfLine("220 fake ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO", "HELO":
			_ = tp.PrintfLine("250 fake")
		case "MAIL":
			s.mu.Lock()
			s.from = line
			s.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case "RCPT":
			s.mu.Lock()
			s.rcpt = line
			s.mu.Unlock()
			_ = tp.PrintfLine("250 OK")
		case "DATA":
			_ = tp.PrintfLine("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				return
			}
			s.mu.Lock()
			s.data = string(body)
			s.mu.Unlock()
			_ = tp.PrintfLine("250 queued")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 not implemented")
		}
	}
}

func TestMailerDeliversPlainText(t *testing.T) {
	srv := startFakeSMTP(t)
	host, portStr, err := net.SplitHostPort(srv.ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m, err := NewMailer(SMTPConfig{Host: host, Port: port, From: "no-reply@civicpulse.example"}, nil)
	require.NoError(t, err)
	m.now = func() time.Time { return testNow }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Send(ctx, codeNotification()))

	select {
	case <-srv.done:
	case <-time.After(5 * time.Second):
		t.Fatal("smtp session did not finish")
	}
	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "MAIL FROM:<no-reply@civicpulse.example>", srv.from)
	assert.Equal(t, "RCPT TO:<voter@example.org>", srv.rcpt)

	r := textproto.NewReader(bufio.NewReader(strings.NewReader(srv.data)))
	hdr, err := r.ReadMIMEHeader()
	require.NoError(t, err)
	assert.Equal(t, "Your sign-in code", hdr.Get("Subject"))
	assert.Equal(t, "text/plain; charset=UTF-8", hdr.Get("Content-Type"))
	assert.Contains(t, srv.data, "Your code is 482913.")
}

func TestNewMailerValidates(t *testing.T) {
	_, err := NewMailer(SMTPConfig{Port: 25, From: "a@b.co"}, nil)
	require.Error(t, err)
	_, err = NewMailer(SMTPConfig{Host: "smtp.example.org", Port: 25}, nil)
	require.Error(t, err)
}

func TestMailerDialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	m, err := NewMailer(SMTPConfig{Host: "127.0.0.1", Port: addr.Port, From: "a@b.co", DialTimeout: time.Second}, nil)
	require.NoError(t, err)
	require.Error(t, m.Send(context.Background(), codeNotification()))
}
