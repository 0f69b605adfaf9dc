package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"listquote/internal"
	"listquote/internal/config"
	"listquote/internal/storage"
)

func TestIntakeCreatesDraftQuotes(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.UpsertProducts(ctx, testProducts()))

	store := func(id, subject, body, receivedAt string) internal.MessageRow {
		raw := buildEML(subject, body)
		path := filepath.Join(tmp, id+".eml")
		require.NoError(t, os.WriteFile(path, raw, 0o644))
		row, err := db.UpsertMessage(ctx, internal.InboundMessage{
			Provider: "imap", MessageID: id, Subject: subject, From: "cliente@example.com", ReceivedAt: receivedAt,
		}, "hash-"+id, path)
		require.NoError(t, err)
		return row
	}
	list := store("m1", "Lista de utiles 2026",
		"Hola:\nNecesito cotizar lo siguiente:\nCU-100 3 unidades\nLápiz grafito HB x 12\nCalculadora científica 1\nGracias\n",
		"2026-03-02T10:00:00Z")
	invoice := store("m2", "Factura marzo", "Adjunto la factura del mes.\nSaludos\n", "2026-03-02T11:00:00Z")

	cfg := config.Config{OutputDir: filepath.Join(tmp, "out"), MailListenerAutoExport: true}
	cfg.MatchOKThreshold, cfg.MatchReviewThreshold, cfg.MatchMinThreshold, cfg.MatchGapThreshold = 0.85, 0.65, 0.40, 0.08

	svc := NewIntakeService(db, cfg, nil)
	summary, err := svc.ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	require.Equal(t, IntakeSummary{Processed: 1, Skipped: 1, Lines: 3}, summary)

	drafts, err := db.ListDraftQuotes(ctx, list.ID)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	require.Equal(t, []internal.CartAddition{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p3", Quantity: 12},
	}, drafts[0].Items)
	require.Equal(t, "11.97", drafts[0].Total)
	require.NotEmpty(t, drafts[0].SessionID)

	exports, err := filepath.Glob(filepath.Join(tmp, "out", "drafts", "*.xlsx"))
	require.NoError(t, err)
	require.Len(t, exports, 1)

	listRow, err := db.MustMessage(ctx, "imap", "m1")
	require.NoError(t, err)
	require.Equal(t, internal.MessageProcessed, listRow.Status)
	invoiceRow, err := db.MustMessage(ctx, "imap", "m2")
	require.NoError(t, err)
	require.Equal(t, internal.MessageSkipped, invoiceRow.Status)

	skippedDrafts, err := db.ListDraftQuotes(ctx, invoice.ID)
	require.NoError(t, err)
	require.Empty(t, skippedDrafts)
}

func TestIntakeMarksUnreadableMessageFailed(t *testing.T) {
	ctx := context.Background()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.UpsertMessage(ctx, internal.InboundMessage{Provider: "gmail", MessageID: "gone"}, "h", filepath.Join(tmp, "missing.eml"))
	require.NoError(t, err)

	summary, err := NewIntakeService(db, config.Config{}, nil).ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Failed)

	row, err := db.MustMessage(ctx, "gmail", "gone")
	require.NoError(t, err)
	require.Equal(t, internal.MessageFailed, row.Status)
}
