package signallog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/betbot/quanttrader/pkg/timeseries"
)

// SQLiteStore 单表存储所有信号日志，(key, ts) 为主键。
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS signal_log (
	key   TEXT    NOT NULL,
	ts    INTEGER NOT NULL,
	value REAL    NOT NULL,
	PRIMARY KEY (key, ts)
);`

// OpenSQLiteStore 打开 SQLite 信号存储
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite signal store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// 单连接，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化 signal_log 表失败: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, key string, series timeseries.Series) (timeseries.MergeStats, error) {
	k, err := validKey(key)
	if err != nil {
		return timeseries.MergeStats{}, err
	}
	incoming := series.DropNaN().Dedupe()
	if len(incoming) == 0 {
		return timeseries.MergeStats{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return timeseries.MergeStats{}, err
	}
	defer tx.Rollback()

	var stats timeseries.MergeStats
	for _, p := range incoming {
		ts := p.Time.UnixNano()
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM signal_log WHERE key = ? AND ts = ?`, k, ts).Scan(&one)
		switch {
		case err == nil:
			stats.Updated++
		case errors.Is(err, sql.ErrNoRows):
			stats.Appended++
		default:
			return timeseries.MergeStats{}, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO signal_log (key, ts, value) VALUES (?, ?, ?)
			 ON CONFLICT(key, ts) DO UPDATE SET value = excluded.value`,
			k, ts, p.Value,
		); err != nil {
			return timeseries.MergeStats{}, fmt.Errorf("append %s: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return timeseries.MergeStats{}, err
	}
	logMerge(k, stats)
	return stats, nil
}

func (s *SQLiteStore) Load(ctx context.Context, key string) (timeseries.Series, error) {
	k, err := validKey(key)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ts, value FROM signal_log WHERE key = ? ORDER BY ts ASC`, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out timeseries.Series
	for rows.Next() {
		var (
			ts int64
			v  float64
		)
		if err := rows.Scan(&ts, &v); err != nil {
			return nil, err
		}
		out = append(out, timeseries.Point{Time: time.Unix(0, ts).UTC(), Value: v})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotExists
	}
	return out, nil
}

func (s *SQLiteStore) Last(ctx context.Context, key string) (timeseries.Point, error) {
	k, err := validKey(key)
	if err != nil {
		return timeseries.Point{}, err
	}
	var (
		ts int64
		v  float64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT ts, value FROM signal_log WHERE key = ? ORDER BY ts DESC LIMIT 1`, k,
	).Scan(&ts, &v)
	if errors.Is(err, sql.ErrNoRows) {
		return timeseries.Point{}, ErrNotExists
	}
	if err != nil {
		return timeseries.Point{}, err
	}
	return timeseries.Point{Time: time.Unix(0, ts).UTC(), Value: v}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
