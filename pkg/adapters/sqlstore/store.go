// Package sqlstore implements ports.Repository on database/sql. SQLite
// (modernc.org/sqlite) and Postgres (pgx stdlib) share one table of JSON
// records keyed by bucket and id.
package sqlstore

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/ports"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

var _ ports.Repository = (*Store)(nil)

// Driver names understood by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const (
	defaultSQLitePath  = ".strata/strata.db"
	defaultPostgresDSN = "postgres://localhost/strata?sslmode=disable"
)

const (
	bucketItems     = "items"
	bucketSamples   = "samples"
	bucketWorkflows = "workflows"
	bucketSettings  = "settings"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

const schema = `CREATE TABLE IF NOT EXISTS records (
	bucket TEXT NOT NULL,
	id TEXT NOT NULL,
	kind TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL,
	PRIMARY KEY (bucket, id)
)`

// Store persists records in a single SQL table.
type Store struct {
	db     *sql.DB
	driver string
}

// OpenSQLite opens (creating if needed) a SQLite database file.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	s, err := Open(ctx, DriverSQLite, path)
	if err != nil {
		return nil, err
	}
	// A single connection avoids SQLITE_BUSY between writers of the same file.
	s.db.SetMaxOpenConns(1)
	return s, nil
}

// OpenPostgres connects to Postgres through the pgx database/sql driver.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultPostgresDSN
	}
	return Open(ctx, DriverPostgres, dsn)
}

// Open connects with driver, pings the database and ensures the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	openMu.Lock()
	db, err := sqlOpen(driver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure records table: %w", err)
	}
	return &Store{db: db, driver: driver}, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return Rebind(query)
}

// Rebind replaces each ? with $1, $2, ... in order.
func Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) put(ctx context.Context, bucket, id, kind string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", bucket, err)
	}
	q := s.rebind(`INSERT INTO records (bucket, id, kind, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT (bucket, id) DO UPDATE SET kind = excluded.kind, payload = excluded.payload`)
	if _, err := s.db.ExecContext(ctx, q, bucket, id, kind, string(payload)); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", bucket, id, err)
	}
	return nil
}

// get decodes the record into v and reports whether it exists.
func (s *Store) get(ctx context.Context, bucket, id string, v any) (bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT payload FROM records WHERE bucket = ? AND id = ?`), bucket, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s %s: %w", bucket, id, err)
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return false, fmt.Errorf("failed to decode %s %s: %w", bucket, id, err)
	}
	return true, nil
}

func (s *Store) payloads(ctx context.Context, bucket, kind string) ([]string, error) {
	q := `SELECT payload FROM records WHERE bucket = ?`
	args := []any{bucket}
	if kind != "" {
		q += ` AND kind = ?`
		args = append(args, kind)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", bucket, err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SaveItem(ctx context.Context, item *domain.Item) error {
	return s.put(ctx, bucketItems, item.ID, string(item.Kind), item)
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	ok, err := s.get(ctx, bucketItems, id, &item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, id)
	}
	if item.Children == nil {
		item.Children = []domain.ChildRef{}
	}
	return &item, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM records WHERE bucket = ? AND id = ?`), bucketItems, id); err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	return nil
}

// ListItems sorts in Go: collation of the id column differs between databases.
func (s *Store) ListItems(ctx context.Context, kind domain.Kind) ([]*domain.Item, error) {
	raw, err := s.payloads(ctx, bucketItems, string(kind))
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Item, 0, len(raw))
	for _, p := range raw {
		var item domain.Item
		if err := json.Unmarshal([]byte(p), &item); err != nil {
			return nil, fmt.Errorf("failed to decode item: %w", err)
		}
		if item.Children == nil {
			item.Children = []domain.ChildRef{}
		}
		out = append(out, &item)
	}
	slices.SortFunc(out, func(a, b *domain.Item) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) SaveSample(ctx context.Context, sample *domain.Sample) error {
	return s.put(ctx, bucketSamples, sample.ID, string(domain.KindSample), sample)
}

func (s *Store) GetSample(ctx context.Context, id string) (*domain.Sample, error) {
	var sample domain.Sample
	ok, err := s.get(ctx, bucketSamples, id, &sample)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: sample %s", domain.ErrNotFound, id)
	}
	return &sample, nil
}

func (s *Store) ListSamples(ctx context.Context) ([]*domain.Sample, error) {
	raw, err := s.payloads(ctx, bucketSamples, "")
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Sample, 0, len(raw))
	for _, p := range raw {
		var sample domain.Sample
		if err := json.Unmarshal([]byte(p), &sample); err != nil {
			return nil, fmt.Errorf("failed to decode sample: %w", err)
		}
		out = append(out, &sample)
	}
	slices.SortFunc(out, func(a, b *domain.Sample) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) SaveWorkflow(ctx context.Context, def *domain.Definition) error {
	return s.put(ctx, bucketWorkflows, def.ID, "", def)
}

func (s *Store) GetWorkflow(ctx context.Context, id string) (*domain.Definition, error) {
	var def domain.Definition
	ok, err := s.get(ctx, bucketWorkflows, id, &def)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, id)
	}
	return &def, nil
}

func (s *Store) ListWorkflows(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT id FROM records WHERE bucket = ?`), bucketWorkflows)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) GetSetting(ctx context.Context, key string) ([]string, error) {
	var values []string
	if _, err := s.get(ctx, bucketSettings, key, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (s *Store) SetSetting(ctx context.Context, key string, values []string) error {
	if values == nil {
		values = []string{}
	}
	return s.put(ctx, bucketSettings, key, "", values)
}
