package listener

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"listquote/internal"
	"listquote/internal/config"
	"listquote/internal/connectors"
	"listquote/internal/storage"
	"listquote/internal/util"
)

type stubConnector struct {
	messages []internal.InboundMessage
	calls    atomic.Int32
}

func (s *stubConnector) FetchInbox(context.Context, string, int) ([]internal.InboundMessage, error) {
	s.calls.Add(1)
	return s.messages, nil
}

const listMail = "From: Cliente <cliente@example.com>\r\n" +
	"Subject: Lista de utiles\r\n" +
	"Date: Mon, 02 Mar 2026 10:00:00 -0300\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n\r\n" +
	"Necesito cotizar:\r\n" +
	"CU-100 3 unidades\r\n" +
	"Lapiz grafito HB x 12\r\n"

func newTestService(t *testing.T, conn connectors.MailConnector) (*Service, *storage.DB) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "listener.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.UpsertProducts(context.Background(), []internal.CatalogProduct{
		{ID: "p1", Name: "Cuaderno college 100 hojas", SKU: util.StringPtr("CU-100"), Price: 1.99, Stock: 40},
		{ID: "p3", Name: "Lápiz grafito HB", Price: 0.5, Stock: 5},
	}))

	cfg := config.Config{
		RawMailDir:               filepath.Join(tmp, "raw"),
		OutputDir:                filepath.Join(tmp, "out"),
		MailListenerProvider:     " IMAP ",
		MailListenerLabel:        "INBOX",
		MailListenerIntervalSec:  1,
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
		MatchOKThreshold:         0.85,
		MatchReviewThreshold:     0.65,
		MatchMinThreshold:        0.40,
		MatchGapThreshold:        0.08,
	}
	svc := NewService(db, cfg, nil)
	svc.newConnector = func(_ context.Context, provider string, _ config.Config) (connectors.MailConnector, error) {
		if provider != "imap" {
			return nil, errors.New("unexpected provider " + provider)
		}
		return conn, nil
	}
	return svc, db
}

func TestRunOnceFetchesAndCreatesDraft(t *testing.T) {
	ctx := context.Background()
	conn := &stubConnector{messages: []internal.InboundMessage{{
		Provider: "imap", MessageID: "<l1@example.com>", Subject: "Lista de utiles",
		ReceivedAt: "2026-03-02T13:00:00Z", Raw: []byte(listMail),
	}}}
	svc, db := newTestService(t, conn)

	res, err := svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, "imap", res.Provider)
	require.Equal(t, 1, res.Fetched)
	require.Equal(t, 1, res.Intake.Processed)
	require.Equal(t, 2, res.Intake.Lines)

	row, err := db.MustMessage(ctx, "imap", "<l1@example.com>")
	require.NoError(t, err)
	require.Equal(t, internal.MessageProcessed, row.Status)
	drafts, err := db.ListDraftQuotes(ctx, row.ID)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Len(t, drafts[0].Items, 2)

	// A second cycle sees the same message again and leaves it alone.
	res, err = svc.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, res.Intake.Processed)
	drafts, err = db.ListDraftQuotes(ctx, row.ID)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
}

func TestRunOnceConnectorError(t *testing.T) {
	svc, _ := newTestService(t, &stubConnector{})
	svc.cfg.MailListenerProvider = "pop3"

	_, err := svc.RunOnce(context.Background())
	require.ErrorContains(t, err, "unexpected provider pop3")
}

func TestRunStopsWhenContextIsDone(t *testing.T) {
	conn := &stubConnector{}
	svc, _ := newTestService(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool { return conn.calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}
