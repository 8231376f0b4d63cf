// Package sqlite is a storage.Driver backed by SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/geniusai/genius/pkg/llm"
	"github.com/geniusai/genius/pkg/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	mode       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
	position        INTEGER NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL,
	images          TEXT,
	ocr_results     TEXT,
	is_error        INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (conversation_id, position)
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
`

// Driver persists conversations in a SQLite database.
type Driver struct {
	db *sql.DB
}

// NewDriver opens (or creates) the database at dbPath. Use ":memory:" for an
// ephemeral database.
func NewDriver(dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every new connection to ":memory:" is a distinct database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) Create(ctx context.Context, conv *llm.Conversation) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, title, mode, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Title, string(conv.Mode), conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	if err := insertMessages(ctx, tx, conv); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Driver) Get(ctx context.Context, id string) (*llm.Conversation, error) {
	var (
		conv               llm.Conversation
		mode               string
		createdAt, updated int64
	)
	err := d.db.QueryRowContext(ctx,
		`SELECT id, title, mode, created_at, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&conv.ID, &conv.Title, &mode, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	conv.Mode = llm.Mode(mode)
	conv.CreatedAt = time.Unix(0, createdAt).UTC()
	conv.UpdatedAt = time.Unix(0, updated).UTC()

	conv.Messages, err = d.messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (d *Driver) List(ctx context.Context) ([]*llm.Conversation, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM conversations ORDER BY updated_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*llm.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := d.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (d *Driver) Update(ctx context.Context, conv *llm.Conversation) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET title = ?, mode = ?, updated_at = ? WHERE id = ?`,
		conv.Title, string(conv.Mode), conv.UpdatedAt.UnixNano(), conv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound{ID: conv.ID}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if err := insertMessages(ctx, tx, conv); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound{ID: id}
	}
	return nil
}

func (d *Driver) Close() error {
	return d.db.Close()
}

func (d *Driver) messages(ctx context.Context, id string) ([]llm.Message, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT role, content, images, ocr_results, is_error FROM messages WHERE conversation_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	out := []llm.Message{}
	for rows.Next() {
		var (
			m           llm.Message
			images, ocr sql.NullString
		)
		if err := rows.Scan(&m.Role, &m.Content, &images, &ocr, &m.Error); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if images.Valid {
			if err := json.Unmarshal([]byte(images.String), &m.Images); err != nil {
				return nil, fmt.Errorf("failed to decode images: %w", err)
			}
		}
		if ocr.Valid {
			if err := json.Unmarshal([]byte(ocr.String), &m.OCRResults); err != nil {
				return nil, fmt.Errorf("failed to decode ocr results: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func insertMessages(ctx context.Context, tx *sql.Tx, conv *llm.Conversation) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (conversation_id, position, role, content, images, ocr_results, is_error) VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range conv.Messages {
		images, err := nullJSON(m.ImageList())
		if err != nil {
			return err
		}
		ocr, err := nullJSON(m.OCRResults)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, conv.ID, i, m.Role, m.Content, images, ocr, m.Error); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}
	return nil
}

func nullJSON[T any](v []T) (sql.NullString, error) {
	if len(v) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode column: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
