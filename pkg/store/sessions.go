package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/docaihq/docai/pkg/domain"
)

// SessionStore keeps conversations as an append-only message log.
// Sessions are created lazily on first append; messages are never
// mutated once written.
type SessionStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes
}

func NewSessionStore(db *sql.DB) (*SessionStore, error) {
	s := &SessionStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}
	return s, nil
}

func (s *SessionStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		owner_id   TEXT,
		file_ids   TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		timestamp  INTEGER NOT NULL,
		metadata   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SessionStore) CreateIfAbsent(ctx context.Context, sessionID, ownerID string, fileIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createIfAbsentLocked(ctx, s.db, sessionID, ownerID, fileIDs)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SessionStore) createIfAbsentLocked(ctx context.Context, db execer, sessionID, ownerID string, fileIDs []string) error {
	var fileIDsJSON sql.NullString
	if len(fileIDs) > 0 {
		raw, err := json.Marshal(fileIDs)
		if err != nil {
			return fmt.Errorf("%w: encode file ids: %v", domain.ErrPersistenceFailed, err)
		}
		fileIDsJSON = sql.NullString{String: string(raw), Valid: true}
	}
	owner := sql.NullString{String: ownerID, Valid: ownerID != ""}
	now := time.Now().Unix()

	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, owner_id, file_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		sessionID, owner, fileIDsJSON, now, now)
	if err != nil {
		return fmt.Errorf("%w: create session: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

// Append writes one message and bumps the session's updated_at. The
// session row is created on first use.
func (s *SessionStore) Append(ctx context.Context, sessionID string, role domain.Role, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin append: %v", domain.ErrPersistenceFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.createIfAbsentLocked(ctx, tx, sessionID, "", nil); err != nil {
		return err
	}

	var metaJSON sql.NullString
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("%w: encode metadata: %v", domain.ErrPersistenceFailed, err)
		}
		metaJSON = sql.NullString{String: string(raw), Valid: true}
	}

	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, role, content, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(role), content, now, metaJSON); err != nil {
		return fmt.Errorf("%w: append message: %v", domain.ErrPersistenceFailed, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE session_id = ? AND updated_at < ?`,
		now, sessionID, now); err != nil {
		return fmt.Errorf("%w: touch session: %v", domain.ErrPersistenceFailed, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit append: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

// Recent returns the last limit messages in chronological order.
func (s *SessionStore) Recent(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, timestamp, metadata
		FROM messages WHERE session_id = ?
		ORDER BY id DESC LIMIT ?`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: load messages: %v", domain.ErrPersistenceFailed, err)
	}
	defer rows.Close()

	var reversed []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var ts int64
		var metaJSON sql.NullString
		if err := rows.Scan(&role, &m.Content, &ts, &metaJSON); err != nil {
			return nil, fmt.Errorf("%w: scan message: %v", domain.ErrPersistenceFailed, err)
		}
		m.Role = domain.Role(role)
		m.Timestamp = time.Unix(ts, 0).UTC()
		if metaJSON.Valid {
			_ = json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
		}
		reversed = append(reversed, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: load messages: %v", domain.ErrPersistenceFailed, err)
	}

	messages := make([]domain.Message, len(reversed))
	for i, m := range reversed {
		messages[len(reversed)-1-i] = m
	}
	return messages, nil
}

// Get returns the session row, or ErrNotFound.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, owner_id, file_ids, created_at, updated_at
		FROM sessions WHERE session_id = ?`, sessionID)

	var sess domain.Session
	var owner, fileIDsJSON sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&sess.SessionID, &owner, &fileIDsJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get session: %v", domain.ErrPersistenceFailed, err)
	}
	sess.OwnerID = owner.String
	if fileIDsJSON.Valid {
		_ = json.Unmarshal([]byte(fileIDsJSON.String), &sess.FileIDs)
	}
	sess.CreatedAt = time.Unix(createdAt, 0).UTC()
	sess.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &sess, nil
}

// Delete removes the session and every message it holds.
func (s *SessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin delete: %v", domain.ErrPersistenceFailed, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("%w: delete messages: %v", domain.ErrPersistenceFailed, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("%w: delete session: %v", domain.ErrPersistenceFailed, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit delete: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}
