package session

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/joescharf/crev/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements Store on a key-value table using modernc.org/sqlite (pure Go, no CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes every read and write of the session.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate runs all embedded SQL migration files in order.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const upsertSQL = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// --- Session ---

// Save writes the token and user in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, sess *models.Session) error {
	if !sess.Valid() {
		return fmt.Errorf("save session: token and user email are required")
	}
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, upsertSQL, KeyToken, sess.Token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertSQL, KeyUser, string(userJSON)); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// Load returns the stored session. A partial or unreadable record is
// reported as ErrNoSession.
func (s *SQLiteStore) Load(ctx context.Context) (*models.Session, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM kv WHERE key IN (?, ?)", KeyToken, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 2)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session: %w", err)
	}

	token, userJSON := values[KeyToken], values[KeyUser]
	if token == "" || userJSON == "" {
		if len(values) > 0 {
			slog.Debug("ignoring partial session record", "keys", len(values))
		}
		return nil, ErrNoSession
	}

	sess := &models.Session{Token: token}
	if err := json.Unmarshal([]byte(userJSON), &sess.User); err != nil {
		slog.Debug("ignoring unreadable session user", "error", err)
		return nil, ErrNoSession
	}
	if !sess.Valid() {
		return nil, ErrNoSession
	}
	return sess, nil
}

// Clear removes the token and user in a single statement.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key IN (?, ?)", KeyToken, KeyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// --- Remembered email ---

func (s *SQLiteStore) RememberEmail(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, upsertSQL, KeyRememberedEmail, email); err != nil {
		return fmt.Errorf("remember email: %w", err)
	}
	return nil
}

// RememberedEmail returns the remembered email, or "" when none is set.
func (s *SQLiteStore) RememberedEmail(ctx context.Context) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", KeyRememberedEmail).Scan(&email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get remembered email: %w", err)
	}
	return email, nil
}

func (s *SQLiteStore) ForgetEmail(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", KeyRememberedEmail); err != nil {
		return fmt.Errorf("forget email: %w", err)
	}
	return nil
}
