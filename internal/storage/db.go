package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"listquote/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT,
  name TEXT NOT NULL,
  brand TEXT,
  category TEXT,
  price REAL NOT NULL DEFAULT 0,
  stock INTEGER NOT NULL DEFAULT 0,
  image TEXT,
  updatedAt TEXT,
  raw_json TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);

CREATE TABLE IF NOT EXISTS messages (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  error TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS draft_quotes (
  id TEXT PRIMARY KEY,
  messageId INTEGER,
  sessionId TEXT NOT NULL,
  total TEXT NOT NULL,
  exportPath TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(messageId) REFERENCES messages(id)
);

CREATE TABLE IF NOT EXISTS draft_quote_items (
  draftId TEXT NOT NULL,
  position INTEGER NOT NULL,
  productId TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  PRIMARY KEY(draftId, position),
  FOREIGN KEY(draftId) REFERENCES draft_quotes(id)
);

CREATE TABLE IF NOT EXISTS cart_items (
  cartId TEXT NOT NULL,
  productId TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  addedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(cartId, productId)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  messageId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertProducts(ctx context.Context, products []internal.CatalogProduct) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO products (id, sku, name, brand, category, price, stock, image, updatedAt, raw_json, lastSeenAt)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  sku=excluded.sku,
  name=excluded.name,
  brand=excluded.brand,
  category=excluded.category,
  price=excluded.price,
  stock=excluded.stock,
  image=excluded.image,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range products {
		rawJSON := p.RawJSON
		if rawJSON == "" {
			rawJSON = "{}"
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.SKU, p.Name, p.Brand, p.Category, p.Price, p.Stock, p.Image, p.UpdatedAt, rawJSON,
		); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts(ctx context.Context) ([]internal.CatalogProduct, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT id, sku, name, brand, category, price, stock, image, updatedAt, raw_json
FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CatalogProduct
	for rows.Next() {
		var p internal.CatalogProduct
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Brand, &p.Category, &p.Price, &p.Stock, &p.Image, &p.UpdatedAt, &p.RawJSON); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n)
	return n, err
}

// UpsertMessage records a fetched message. Re-fetching refreshes headers but
// keeps the processing status.
func (d *DB) UpsertMessage(ctx context.Context, msg internal.InboundMessage, hash, rawRef string) (internal.MessageRow, error) {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO messages (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, string(internal.MessageFetched), rawRef)
	if err != nil {
		return internal.MessageRow{}, err
	}

	row, err := d.GetMessage(ctx, msg.Provider, msg.MessageID)
	if err != nil {
		return internal.MessageRow{}, err
	}
	if row == nil {
		return internal.MessageRow{}, errors.New("failed to upsert message")
	}
	return *row, nil
}

const messageColumns = `id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef`

func scanMessage(scanner interface{ Scan(...any) error }) (internal.MessageRow, error) {
	var row internal.MessageRow
	var status string
	err := scanner.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &status, &row.RawRef)
	row.Status = internal.MessageStatus(status)
	return row, err
}

func (d *DB) GetMessage(ctx context.Context, provider, messageID string) (*internal.MessageRow, error) {
	row, err := scanMessage(d.conn.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE provider = ? AND messageId = ?`, provider, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustMessage(ctx context.Context, provider, messageID string) (internal.MessageRow, error) {
	row, err := d.GetMessage(ctx, provider, messageID)
	if err != nil {
		return internal.MessageRow{}, err
	}
	if row == nil {
		return internal.MessageRow{}, fmt.Errorf("message not found: provider=%s messageId=%s", provider, messageID)
	}
	return *row, nil
}

func (d *DB) ListMessagesByStatus(ctx context.Context, status internal.MessageStatus, limit int) ([]internal.MessageRow, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE status = ? ORDER BY receivedAt ASC, id ASC LIMIT ?`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.MessageRow
	for rows.Next() {
		row, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateMessageStatus(ctx context.Context, id int64, status internal.MessageStatus, failure string) error {
	var errValue any
	if failure != "" {
		errValue = failure
	}
	_, err := d.conn.ExecContext(ctx,
		`UPDATE messages SET status = ?, error = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, string(status), errValue, id)
	return err
}

func (d *DB) SaveDraftQuote(ctx context.Context, draft internal.DraftQuote, exportPath string) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var messageID any
	if draft.MessageID != 0 {
		messageID = draft.MessageID
	}
	var path any
	if exportPath != "" {
		path = exportPath
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO draft_quotes (id, messageId, sessionId, total, exportPath) VALUES (?, ?, ?, ?, ?)`,
		draft.ID, messageID, draft.SessionID, draft.Total, path); err != nil {
		return err
	}
	for i, item := range draft.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO draft_quote_items (draftId, position, productId, quantity) VALUES (?, ?, ?, ?)`,
			draft.ID, i, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListDraftQuotes(ctx context.Context, messageID int64) ([]internal.DraftQuote, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, messageId, sessionId, total, createdAt FROM draft_quotes WHERE messageId = ? ORDER BY createdAt, id`, messageID)
	if err != nil {
		return nil, err
	}
	var drafts []internal.DraftQuote
	for rows.Next() {
		var draft internal.DraftQuote
		var msgID sql.NullInt64
		if err := rows.Scan(&draft.ID, &msgID, &draft.SessionID, &draft.Total, &draft.CreatedAt); err != nil {
			_ = rows.Close()
			return nil, err
		}
		draft.MessageID = msgID.Int64
		drafts = append(drafts, draft)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range drafts {
		items, err := d.draftItems(ctx, drafts[i].ID)
		if err != nil {
			return nil, err
		}
		drafts[i].Items = items
	}
	return drafts, nil
}

func (d *DB) draftItems(ctx context.Context, draftID string) ([]internal.CartAddition, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT productId, quantity FROM draft_quote_items WHERE draftId = ? ORDER BY position`, draftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CartAddition
	for rows.Next() {
		var item internal.CartAddition
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(ctx context.Context, traceID string, messageID int64, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	var msgID any
	if messageID != 0 {
		msgID = messageID
	}
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO runs (traceId, messageId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`,
		traceID, msgID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
