package session

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	"civiclens/portal/models"
	"civiclens/portal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists the dashboard session across process restarts, the way a
// browser keeps it in local storage across reloads. The token is sealed at
// rest; role and department are stored as-is. Save and Clear always touch
// all three fields together.
type Store struct {
	db     *sql.DB
	cipher *security.TokenCipher

	mu      sync.RWMutex
	current models.Session
}

// Open opens (or creates) the session database at path and loads any
// persisted session. Use ":memory:" for throwaway stores.
func Open(path string, cipher *security.TokenCipher) (*Store, error) {
	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening session database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to session database: %w", err)
	}

	createSessionTable := `
	CREATE TABLE IF NOT EXISTS session (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.Exec(createSessionTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating session table: %w", err)
	}

	s := &Store{db: db, cipher: cipher}
	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// load restores the persisted session into memory. A token that fails to
// unseal (key rotated, file copied from elsewhere) is treated as no
// session rather than an error.
func (s *Store) load() error {
	rows, err := s.db.Query("SELECT key, value FROM session")
	if err != nil {
		return fmt.Errorf("error reading session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("error scanning session row: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating session rows: %w", err)
	}

	if sealed, ok := values["token"]; ok && sealed != "" {
		token, err := s.cipher.Open(sealed)
		if err != nil {
			log.Printf("Warning: could not unseal persisted session token, discarding session: %v", err)
			return nil
		}
		s.current = models.Session{
			Token:      token,
			Role:       values["role"],
			Department: values["department"],
		}
	}
	return nil
}

// Save stores a session, replacing any previous one. Token, role, and
// department are written in a single transaction.
func (s *Store) Save(sess models.Session) error {
	sealed, err := s.cipher.Seal(sess.Token)
	if err != nil {
		return fmt.Errorf("error sealing session token: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting session transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `
	INSERT INTO session (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	for key, value := range map[string]string{
		"token":      sealed,
		"role":       sess.Role,
		"department": sess.Department,
	} {
		if _, err := tx.Exec(upsert, key, value); err != nil {
			return fmt.Errorf("error persisting session %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing session: %w", err)
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return nil
}

// Clear wipes the session, both persisted and in memory. Partial clears
// are impossible: all fields go together.
func (s *Store) Clear() error {
	if _, err := s.db.Exec("DELETE FROM session"); err != nil {
		return fmt.Errorf("error clearing session: %w", err)
	}

	s.mu.Lock()
	s.current = models.Session{}
	s.mu.Unlock()
	return nil
}

// Session returns the current session (zero value when logged out).
func (s *Store) Session() models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
