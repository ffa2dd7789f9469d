// Package archive keeps a local SQLite log of every collector delivery.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"polmem/sink"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one archived delivery attempt.
type Entry struct {
	ID        string
	Path      string
	Player    string
	Body      string
	Status    string
	Error     string
	CreatedAt time.Time
}

// Store is a SQLite-backed delivery log.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// Open opens or creates the archive database at dbPath.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) newID(now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), s.entropy).String()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS deliveries (
		id         TEXT PRIMARY KEY,
		path       TEXT NOT NULL,
		player     TEXT NOT NULL DEFAULT '',
		body       TEXT NOT NULL,
		status     TEXT NOT NULL,
		error      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_deliveries_player ON deliveries(player);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores one delivery attempt and returns its id.
func (s *Store) Record(ctx context.Context, path string, payload any, deliveryErr error) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var player string
	if p, ok := payload.(interface{ Player() string }); ok {
		player = p.Player()
	}

	status, errText := StatusOK, ""
	if deliveryErr != nil {
		status, errText = StatusFailed, deliveryErr.Error()
	}

	now := time.Now().UTC()
	id := s.newID(now)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, path, player, body, status, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, path, player, string(body), status, errText, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert delivery: %w", err)
	}
	return id, nil
}

// Recent returns up to n entries, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}

	// Monotonic ULIDs sort by insertion order
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, player, body, status, error, created_at FROM deliveries ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Path, &e.Player, &e.Body, &e.Status, &e.Error, &created); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sink decorates next, recording every Post outcome in the store.
type Sink struct {
	next  sink.Sink
	store *Store
}

var _ sink.Sink = (*Sink)(nil)

func NewSink(next sink.Sink, store *Store) *Sink {
	return &Sink{next: next, store: store}
}

// Post delivers through next and archives the result. Archive failures are
// joined onto the returned error but never block delivery.
func (a *Sink) Post(ctx context.Context, path string, payload any) error {
	deliveryErr := a.next.Post(ctx, path, payload)

	// The delivery context may already be cancelled; archive on a fresh one
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	if _, err := a.store.Record(recordCtx, path, payload, deliveryErr); err != nil {
		if deliveryErr != nil {
			return fmt.Errorf("%w (archive: %v)", deliveryErr, err)
		}
		return fmt.Errorf("archive: %w", err)
	}
	return deliveryErr
}
