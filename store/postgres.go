// Package store persists document snapshots and message logs to
// PostgreSQL, so a transport.Server process can rehydrate a document
// after a restart instead of losing it (the PERSISTENCE module; §1 scopes
// persistence out of the CRDT core itself, but a deployable instance of
// it still needs this). Grounded on the teacher's server/main.go, which
// opens a pgxpool connection but leaves it unused ("NOTE: we connect to
// Postgres but don't use it yet") — this package is that next step.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sumanthd032/collabtext/crdt"
)

// Postgres implements transport.Store against a pgxpool.Pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Open connects to databaseURL and returns a ready Postgres store.
// Grounded on the teacher's server/main.go dbUrl/pgxpool.New call.
func Open(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: connect to postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate creates the tables this store needs, if they do not already
// exist. Safe to call on every process startup.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS document_snapshots (
			doc_id     TEXT PRIMARY KEY,
			text       TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS document_messages (
			doc_id     TEXT NOT NULL,
			seq        BIGSERIAL,
			kind       SMALLINT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (doc_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// LoadSnapshot returns the most recently saved flat text for docID.
func (p *Postgres) LoadSnapshot(docID string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var text string
	err := p.pool.QueryRow(ctx,
		`SELECT text FROM document_snapshots WHERE doc_id = $1`, docID,
	).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: load snapshot %q: %w", docID, err)
	}
	return text, true, nil
}

// SaveSnapshot upserts the flat text snapshot for docID and compacts its
// message log: every message already reflected in the snapshot is
// deleted, so LoadMessages only ever needs to replay what was appended
// since this save (the "snapshot plus any messages after it" scheme the
// PERSISTENCE module calls for). Both writes happen in one transaction so
// a crash mid-save never leaves the snapshot ahead of the log it was
// compacted against.
func (p *Postgres) SaveSnapshot(docID, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: save snapshot %q: %w", docID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO document_snapshots (doc_id, text, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (doc_id) DO UPDATE SET text = $2, updated_at = now()
	`, docID, text); err != nil {
		return fmt.Errorf("store: save snapshot %q: %w", docID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM document_messages WHERE doc_id = $1`, docID); err != nil {
		return fmt.Errorf("store: compact message log %q: %w", docID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: save snapshot %q: %w", docID, err)
	}
	return nil
}

// AppendMessage appends msg to docID's durable message log, for replay
// after a crash between snapshots.
func (p *Postgres) AppendMessage(docID string, msg crdt.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("store: marshal message: %w", err)
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO document_messages (doc_id, kind, payload, created_at)
		VALUES ($1, $2, $3, now())
	`, docID, int8(msg.Kind), payload)
	if err != nil {
		return fmt.Errorf("store: append message %q: %w", docID, err)
	}
	return nil
}

// LoadMessages returns every message logged for docID since the last
// SaveSnapshot, in the order they were appended, for replay on top of
// the loaded snapshot.
func (p *Postgres) LoadMessages(docID string) ([]crdt.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT payload FROM document_messages WHERE doc_id = $1 ORDER BY seq ASC`, docID)
	if err != nil {
		return nil, fmt.Errorf("store: load messages %q: %w", docID, err)
	}
	defer rows.Close()

	var msgs []crdt.Message
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("store: scan message %q: %w", docID, err)
		}
		var msg crdt.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("store: unmarshal message %q: %w", docID, err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load messages %q: %w", docID, err)
	}
	return msgs, nil
}
