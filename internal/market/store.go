package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Manifest 记录某个市场 tick 库的统计信息。
type Manifest struct {
	Market     string `json:"market"`
	MinTime    int64  `json:"min_time"`
	MaxTime    int64  `json:"max_time"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

// Store 以每市场一个 SQLite 文件的方式保存原始 tick。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) db(m Market) (*sql.DB, string, error) {
	if m == "" {
		return nil, "", fmt.Errorf("market 不能为空")
	}
	key := strings.ToUpper(string(m))
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok && db != nil {
		return db, s.dbPath(m), nil
	}
	path := s.dbPath(m)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db, key); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	s.dbs[key] = db
	return db, path, nil
}

func (s *Store) dbPath(m Market) string {
	return filepath.Join(s.root, strings.ToUpper(string(m)), "ticks.db")
}

// InsertTicks 批量写入 tick（重复时间戳将被覆盖）。
func (s *Store) InsertTicks(ctx context.Context, m Market, ticks []Tick) (int, error) {
	if len(ticks) == 0 {
		return 0, nil
	}
	db, _, err := s.db(m)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ticks (ts, price) VALUES (?, ?)
		ON CONFLICT(ts) DO UPDATE SET price=excluded.price`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, t := range ticks {
		if _, err := stmt.ExecContext(ctx, t.Timestamp.UnixMilli(), t.Price); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if err := s.refreshManifest(ctx, db); err != nil {
		return count, err
	}
	return count, nil
}

// RangeTicks 返回 [start, end] 区间内的 tick（按时间升序，IST 时区）。
func (s *Store) RangeTicks(ctx context.Context, m Market, start, end time.Time) ([]Tick, error) {
	db, _, err := s.db(m)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		start, end = end, start
	}
	rows, err := db.QueryContext(ctx, `
		SELECT ts, price FROM ticks
		WHERE ts BETWEEN ? AND ?
		ORDER BY ts ASC`, start.UnixMilli(), end.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Tick
	for rows.Next() {
		var ts int64
		var price float64
		if err := rows.Scan(&ts, &price); err != nil {
			return nil, err
		}
		list = append(list, Tick{Timestamp: time.UnixMilli(ts).In(IST), Price: price})
	}
	return list, rows.Err()
}

func (s *Store) Manifest(ctx context.Context, m Market) (Manifest, error) {
	db, path, err := s.db(m)
	if err != nil {
		return Manifest{}, err
	}
	row := db.QueryRowContext(ctx, `SELECT market,min_time,max_time,rows,last_sync_at FROM manifest WHERE id=1`)
	var mf Manifest
	if err := row.Scan(&mf.Market, &mf.MinTime, &mf.MaxTime, &mf.Rows, &mf.LastSyncAt); err != nil {
		return Manifest{}, err
	}
	mf.Path = path
	return mf, nil
}

func (s *Store) refreshManifest(ctx context.Context, db *sql.DB) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		UPDATE manifest
		SET min_time = (SELECT COALESCE(MIN(ts), 0) FROM ticks),
		    max_time = (SELECT COALESCE(MAX(ts), 0) FROM ticks),
		    rows = (SELECT COUNT(1) FROM ticks),
		    last_sync_at = ?
		WHERE id = 1`, now)
	return err
}

func ensureSchema(db *sql.DB, marketKey string) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticks (
			ts    INTEGER PRIMARY KEY,
			price REAL NOT NULL,
			inserted_at INTEGER NOT NULL DEFAULT (strftime('%s','now') * 1000)
		);`,
		`CREATE TABLE IF NOT EXISTS manifest (
			id INTEGER PRIMARY KEY CHECK (id=1),
			market TEXT NOT NULL,
			min_time INTEGER,
			max_time INTEGER,
			rows INTEGER DEFAULT 0,
			last_sync_at INTEGER
		);`,
		`INSERT INTO manifest (id, market) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET market=excluded.market;`,
	}
	for i, stmt := range stmts {
		var err error
		if i == len(stmts)-1 {
			_, err = db.Exec(stmt, marketKey)
		} else {
			_, err = db.Exec(stmt)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
