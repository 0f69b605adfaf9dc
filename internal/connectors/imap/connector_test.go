package imap

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/require"

	"listquote/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	_, err := NewConnector(config.Config{IMAPHost: "mail.test"})
	require.ErrorContains(t, err, "IMAP_USER")

	c, err := NewConnector(config.Config{IMAPHost: "mail.test", IMAPPort: 993, IMAPUser: "u", IMAPPassword: "p", IMAPSecure: true})
	require.NoError(t, err)
	require.True(t, c.secure)
}

func TestFetchInboxHonoursCancelledContext(t *testing.T) {
	c := &Connector{host: "127.0.0.1", port: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.FetchInbox(ctx, "INBOX", 5)
	require.ErrorIs(t, err, context.Canceled)
}

func TestToInbound(t *testing.T) {
	received := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		Uid:          42,
		InternalDate: received,
		Envelope: &imap.Envelope{
			Subject: "Lista",
			From: []*imap.Address{
				{PersonalName: "Ana", MailboxName: "ana", HostName: "example.com"},
				nil,
				{MailboxName: "otro", HostName: "example.com"},
			},
		},
	}
	got := toInbound(msg, []byte("raw"))
	require.Equal(t, "imap", got.Provider)
	require.Equal(t, "imap-42", got.MessageID)
	require.Equal(t, "Lista", got.Subject)
	require.Equal(t, "Ana <ana@example.com>, otro@example.com", got.From)
	require.Equal(t, "2026-03-02T13:00:00Z", got.ReceivedAt)
}
