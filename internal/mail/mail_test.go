package mail

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servus-backend/internal/config"
)

func render(t *testing.T, subject, body string) string {
	t.Helper()
	msg, err := BuildMessage("ops@servus.local", "a@example.com", subject, body, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	out := render(t, "Job Status Updated: Küche reparieren", "Ihr Auftrag ist erledigt.")
	assert.Contains(t, out, "Subject: =?UTF-8?")
	assert.NotContains(t, out, "Subject: Job Status Updated: Küche")
}

func TestBuildMessageStripsHeaderInjection(t *testing.T) {
	out := render(t, "Job done\nX-Evil: 1", "line one\nline two")
	assert.NotContains(t, out, "\r\nX-Evil:")
	assert.NotContains(t, out, "\nX-Evil:")

	_, err := BuildMessage("ops@servus.local", "a@example.com\r\nBcc: victim@example.com", "hi", "body", time.Now())
	assert.Error(t, err)
}

func TestSendGivesUpOnSilentServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		if c, err := ln.Accept(); err == nil {
			accepted <- c
		}
	}()

	s := &SMTPSender{host: "127.0.0.1", port: ln.Addr().(*net.TCPAddr).Port, from: "ops@servus.local"}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.Error(t, s.Send(ctx, "a@example.com", "hi", "body"))
	assert.Less(t, time.Since(start), 5*time.Second)

	// the server never greeted, so the client must have hung up by now
	select {
	case conn := <-accepted:
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, err := conn.Read(make([]byte, 1))
		assert.ErrorIs(t, err, io.EOF)
	case <-time.After(2 * time.Second):
		t.Fatal("no connection was made")
	}
}

func TestNewFallsBackToLogSender(t *testing.T) {
	cfg := &config.Config{}
	s := New(cfg)
	assert.IsType(t, LogSender{}, s)
	assert.NoError(t, s.Send(context.Background(), "x@example.com", "hi", "body"))

	cfg.Email.SMTPHost = "smtp.example.com"
	cfg.Email.SMTPPort = 587
	assert.IsType(t, &SMTPSender{}, New(cfg))
}
