package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "modernc.org/sqlite"
)

// Message is one conversation turn.
type Message struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Model     string    `json:"model,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	role TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
`

// Store persists conversation history in SQLite, keeping at most maxEntries
// messages. Older messages are trimmed as new ones arrive.
type Store struct {
	db         *sql.DB
	maxEntries int
	log        *slog.Logger
}

// Open opens (creating if necessary) the history database at path.
// maxEntries <= 0 disables trimming.
func Open(path string, maxEntries int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	return &Store{db: db, maxEntries: maxEntries, log: logger}, nil
}

// DefaultPath returns the platform-appropriate history database path.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "aidev", "history.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "aidev", "history.db"), nil
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, "aidev", "history.db"), nil
		}
		return filepath.Join(home, "AppData", "Local", "aidev", "history.db"), nil
	default:
		return filepath.Join(home, ".local", "share", "aidev", "history.db"), nil
	}
}

// Add appends a message and trims history beyond the entry limit.
func (s *Store) Add(ctx context.Context, role, model, content string) error {
	if content == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (role, model, content, created_at) VALUES (?, ?, ?, ?)`,
		role, model, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}

	if s.maxEntries > 0 {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM messages WHERE id NOT IN (
				SELECT id FROM messages ORDER BY id DESC LIMIT ?
			)`, s.maxEntries)
		if err != nil {
			return fmt.Errorf("trimming history: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			s.log.Debug("history: trimmed old messages", "removed", n)
		}
	}
	return nil
}

// Messages returns up to limit most recent messages in chronological order.
// limit <= 0 returns everything.
func (s *Store) Messages(ctx context.Context, limit int) ([]Message, error) {
	query := `SELECT id, role, model, content, created_at FROM messages ORDER BY id`
	args := []any{}
	if limit > 0 {
		query = `SELECT id, role, model, content, created_at FROM (
			SELECT id, role, model, content, created_at FROM messages ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Model, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Count returns the number of stored messages.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, err
}

// Clear removes all messages and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages`)
	if err != nil {
		return 0, fmt.Errorf("clearing history: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
