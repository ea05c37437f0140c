package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fardannozami/amchegoa/internal/domain"
)

// Keys of the per-namespace key/value layout.
const (
	KeyUsers       = "users"
	KeyCurrentUser = "currentUser"
	KeyReports     = "reports"
	KeyWarnings    = "userWarnings"
)

type Store struct {
	db  *sql.DB
	log *zap.Logger
}

func NewStore(db *sql.DB, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{db: db, log: log}
}

func (s *Store) InitTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS local_store (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT,
			PRIMARY KEY (namespace, key)
		);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getItem(ctx context.Context, q queryer, namespace, key string) (string, bool, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM local_store WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func setItem(ctx context.Context, q queryer, namespace, key, value string) error {
	query := `
		INSERT INTO local_store (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query, namespace, key, value, time.Now().UTC().Format(time.RFC3339))
	return err
}

func removeItem(ctx context.Context, q queryer, namespace, key string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM local_store WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}

func (s *Store) GetItem(ctx context.Context, namespace, key string) (string, bool, error) {
	return getItem(ctx, s.db, namespace, key)
}

func (s *Store) SetItem(ctx context.Context, namespace, key, value string) error {
	return setItem(ctx, s.db, namespace, key, value)
}

func (s *Store) LoadUsers(ctx context.Context, namespace string) ([]domain.User, error) {
	raw, ok, err := s.GetItem(ctx, namespace, KeyUsers)
	if err != nil || !ok {
		return nil, err
	}
	var users []domain.User
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		s.log.Warn("discarding unreadable users list", zap.String("namespace", namespace), zap.Error(err))
		return nil, nil
	}
	return users, nil
}

func (s *Store) SaveUsers(ctx context.Context, namespace string, users []domain.User) error {
	if users == nil {
		users = []domain.User{}
	}
	data, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}
	return s.SetItem(ctx, namespace, KeyUsers, string(data))
}

func (s *Store) LoadSession(ctx context.Context, namespace string) (*domain.Session, error) {
	session := &domain.Session{Namespace: namespace}

	raw, ok, err := s.GetItem(ctx, namespace, KeyCurrentUser)
	if err != nil {
		return nil, err
	}
	if ok {
		var user domain.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			s.log.Warn("discarding unreadable session user", zap.String("namespace", namespace), zap.Error(err))
		} else {
			session.User = &user
		}
	}

	raw, ok, err = s.GetItem(ctx, namespace, KeyWarnings)
	if err != nil {
		return nil, err
	}
	if ok {
		session.Warnings = parseWarnings(raw)
	}
	return session, nil
}

// parseWarnings reads the counter the way the app always has: anything unparsable is 0.
func parseWarnings(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SaveSession writes the session user (when signed in) and the warning counter together.
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if session.User != nil {
		data, err := json.Marshal(session.User)
		if err != nil {
			return fmt.Errorf("encode session user: %w", err)
		}
		if err := setItem(ctx, tx, session.Namespace, KeyCurrentUser, string(data)); err != nil {
			return err
		}
	}
	if err := setItem(ctx, tx, session.Namespace, KeyWarnings, strconv.Itoa(session.Warnings)); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ClearSession(ctx context.Context, namespace string) error {
	return removeItem(ctx, s.db, namespace, KeyCurrentUser)
}

// Namespaces lists every namespace holding a signed-in session.
func (s *Store) Namespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT namespace FROM local_store WHERE key = ? ORDER BY namespace`, KeyCurrentUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, rows.Err()
}

// LoadReports returns the history in insertion order. Entries that are not objects
// or do not decode as a report are skipped.
func (s *Store) LoadReports(ctx context.Context, namespace string) ([]domain.Report, error) {
	raw, ok, err := s.GetItem(ctx, namespace, KeyReports)
	if err != nil || !ok {
		return nil, err
	}
	return s.decodeReports(namespace, raw), nil
}

func (s *Store) decodeReports(namespace, raw string) []domain.Report {
	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.log.Warn("reports value is not a list", zap.String("namespace", namespace), zap.Error(err))
		return nil
	}

	reports := make([]domain.Report, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			skipped++
			continue
		}
		var report domain.Report
		if err := json.Unmarshal(entry, &report); err != nil {
			skipped++
			continue
		}
		reports = append(reports, report)
	}
	if skipped > 0 {
		s.log.Warn("skipped malformed reports", zap.String("namespace", namespace), zap.Int("skipped", skipped))
	}
	return reports
}

func (s *Store) AppendReport(ctx context.Context, namespace string, report domain.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var entries []json.RawMessage
	raw, ok, err := getItem(ctx, tx, namespace, KeyReports)
	if err != nil {
		return err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			s.log.Warn("replacing unreadable reports value", zap.String("namespace", namespace), zap.Error(err))
			entries = nil
		}
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	entries = append(entries, data)

	encoded, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode reports: %w", err)
	}
	if err := setItem(ctx, tx, namespace, KeyReports, string(encoded)); err != nil {
		return err
	}
	return tx.Commit()
}
