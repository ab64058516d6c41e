package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
    key           TEXT PRIMARY KEY,
    kind          TEXT NOT NULL,
    source_mod    INTEGER NOT NULL,
    snapshot_json TEXT NOT NULL,
    updated_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
`

// SQLiteStore 把全部快照存进单个 SQLite 文件（大库时比逐文件 xml 更省 inode）。
type SQLiteStore struct {
	db       *sql.DB
	path     string
	readOnly bool
}

// OpenSQLite 打开（必要时创建）缓存库。
// 只读模式下库文件不存在不算错误：所有 Load 都返回未命中。
func OpenSQLite(path string, readOnly bool) (*SQLiteStore, error) {
	s := &SQLiteStore{path: path, readOnly: readOnly}

	if readOnly {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return s, nil
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	dsn := path
	if readOnly {
		dsn = "file:" + path + "?mode=ro"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// 单连接：PRAGMA 对连接生效，同时让并发 worker 的写入在进程内串行。
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA busy_timeout = 5000"}
	if !readOnly {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA synchronous=NORMAL")
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if !readOnly {
		if _, err := db.Exec(sqliteSchema); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	s.db = db
	return s, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (Snapshot, bool, error) {
	if err := checkKey(key); err != nil {
		return Snapshot{}, false, err
	}
	if s.db == nil {
		return Snapshot{}, false, nil
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT snapshot_json FROM records WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("query record %q: %w", key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return Snapshot{}, false, &CorruptError{Key: key, Err: err}
	}
	if snap.Key != key {
		return Snapshot{}, false, &CorruptError{Key: key, Err: fmt.Errorf("快照 key 不一致：%q", snap.Key)}
	}
	return snap, true, nil
}

// Save 用单条 UPSERT 写入；SQLite 保证它要么整体生效要么不生效。
func (s *SQLiteStore) Save(ctx context.Context, snap Snapshot) error {
	if s.readOnly || s.db == nil {
		return ErrReadOnly
	}
	if err := checkKey(snap.Key); err != nil {
		return err
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (key, kind, source_mod, snapshot_json, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
             kind = excluded.kind,
             source_mod = excluded.source_mod,
             snapshot_json = excluded.snapshot_json,
             updated_at = excluded.updated_at`,
		snap.Key,
		string(snap.Kind),
		snap.SourceMod,
		string(raw),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert record %q: %w", snap.Key, err)
	}
	return nil
}

// Keys 列出全部 key（cache show 命令补全 / 调试用）。
func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM records ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
