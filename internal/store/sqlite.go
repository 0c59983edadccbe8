package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/veracity/internal/model"
)

// SQLite is a RuleStore and ClaimStore backed by a SQLite database.
// Records are stored as JSON documents next to the columns used for lookup.
type SQLite struct {
	db  *sql.DB
	mu  sync.RWMutex
	now func() time.Time
}

// OpenSQLite opens or creates the database at path. ":memory:" gives a
// private in-process database.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}
	connStr := path
	if path == ":memory:" {
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	s := &SQLite{db: db, now: time.Now}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rule_versions (
		id         TEXT NOT NULL,
		version    INTEGER NOT NULL,
		body       TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (id, version)
	);

	CREATE TABLE IF NOT EXISTS rule_hits (
		id   TEXT PRIMARY KEY,
		hits INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS claims (
		key            TEXT PRIMARY KEY,
		domain         TEXT NOT NULL,
		curated        INTEGER NOT NULL DEFAULT 0,
		body           TEXT NOT NULL,
		updated_at     INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_claims_domain ON claims(domain);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func (s *SQLite) SaveRule(ctx context.Context, rule model.ComplianceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.Version == 0 {
		err := s.db.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM rule_versions WHERE id = ?`, rule.ID).Scan(&rule.Version)
		if err != nil {
			return fmt.Errorf("next version for %s: %w", rule.ID, err)
		}
	}
	body, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("marshal rule %s: %w", rule.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_versions (id, version, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id, version) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		rule.ID, rule.Version, string(body), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	return nil
}

func (s *SQLite) GetRule(ctx context.Context, id string) (model.ComplianceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM rule_versions WHERE id = ? ORDER BY version DESC LIMIT 1`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ComplianceRule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.ComplianceRule{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	return decodeRule(body)
}

func (s *SQLite) ListRules(ctx context.Context) ([]model.ComplianceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.body FROM rule_versions r
		JOIN (SELECT id, MAX(version) AS version FROM rule_versions GROUP BY id) latest
		  ON r.id = latest.id AND r.version = latest.version
		ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return scanRules(rows)
}

func (s *SQLite) RuleHistory(ctx context.Context, id string) ([]model.ComplianceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM rule_versions WHERE id = ? ORDER BY version`, id)
	if err != nil {
		return nil, fmt.Errorf("rule history %s: %w", id, err)
	}
	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return rules, nil
}

func (s *SQLite) RecordRuleHit(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rule_versions WHERE id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("lookup rule %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rule_hits (id, hits) VALUES (?, 1)
		ON CONFLICT(id) DO UPDATE SET hits = hits + 1`, id)
	if err != nil {
		return fmt.Errorf("record hit %s: %w", id, err)
	}
	return nil
}

func (s *SQLite) RuleHits(ctx context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits int
	err := s.db.QueryRowContext(ctx, `SELECT hits FROM rule_hits WHERE id = ?`, id).Scan(&hits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rule hits %s: %w", id, err)
	}
	return hits, nil
}

func (s *SQLite) UpsertClaim(ctx context.Context, claim StoredClaim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ClaimKey(claim.Statement)
	existing, err := s.getClaim(ctx, key)
	var prev *StoredClaim
	switch {
	case err == nil:
		prev = &existing
	case !errors.Is(err, ErrNotFound):
		return err
	}
	return s.putClaim(ctx, mergeClaim(prev, claim, s.now()))
}

func (s *SQLite) GetClaim(ctx context.Context, key string) (StoredClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getClaim(ctx, key)
}

func (s *SQLite) ListClaims(ctx context.Context, domain model.Domain) ([]StoredClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT body FROM claims ORDER BY key`
	var args []any
	if domain != "" {
		query = `SELECT body FROM claims WHERE domain = ? ORDER BY key`
		args = append(args, string(domain))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []StoredClaim
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		var c StoredClaim
		if err := json.Unmarshal([]byte(body), &c); err != nil {
			return nil, fmt.Errorf("decode claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) ReinforceClaim(ctx context.Context, key string, evidence []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClaim(ctx, key)
	if err != nil {
		return err
	}
	c.Reinforcements++
	c.Evidence = appendUnique(c.Evidence, evidence...)
	c.UpdatedAt = s.now()
	return s.putClaim(ctx, c)
}

func (s *SQLite) getClaim(ctx context.Context, key string) (StoredClaim, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM claims WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return StoredClaim{}, fmt.Errorf("claim %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return StoredClaim{}, fmt.Errorf("get claim %q: %w", key, err)
	}
	var c StoredClaim
	if err := json.Unmarshal([]byte(body), &c); err != nil {
		return StoredClaim{}, fmt.Errorf("decode claim %q: %w", key, err)
	}
	return c, nil
}

func (s *SQLite) putClaim(ctx context.Context, c StoredClaim) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO claims (key, domain, curated, body, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			domain = excluded.domain,
			curated = excluded.curated,
			body = excluded.body,
			updated_at = excluded.updated_at`,
		c.Key, string(c.Domain), c.Curated, string(body), c.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert claim %q: %w", c.Key, err)
	}
	return nil
}

func scanRules(rows *sql.Rows) ([]model.ComplianceRule, error) {
	defer rows.Close()
	var out []model.ComplianceRule
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r, err := decodeRule(body)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func decodeRule(body string) (model.ComplianceRule, error) {
	var r model.ComplianceRule
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return model.ComplianceRule{}, fmt.Errorf("decode rule: %w", err)
	}
	return r, nil
}
