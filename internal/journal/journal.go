// Package journal 把每一次下单尝试写入 SQLite，便于事后审计。
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/betbot/quanttrader/internal/domain"
)

// Entry 一条下单记录。OrderID 为空且 Error 非空表示下单失败。
type Entry struct {
	ID            int64     `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	Instrument    string    `json:"instrument"`
	Side          string    `json:"side"`
	Type          string    `json:"type"`
	Quantity      float64   `json:"quantity"`
	Price         float64   `json:"price"`
	OrderID       string    `json:"order_id,omitempty"`
	ClientOrderID string    `json:"client_order_id,omitempty"`
	Error         string    `json:"error,omitempty"`
}

type Journal struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir journal dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, now: time.Now}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS orders (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  created_at TEXT NOT NULL,
  instrument TEXT NOT NULL,
  side TEXT NOT NULL,
  type TEXT NOT NULL,
  qty REAL NOT NULL,
  price REAL NOT NULL DEFAULT 0,
  order_id TEXT,
  client_order_id TEXT,
  error TEXT
);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_instrument ON orders(instrument, id);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordOrder 实现 trader.Recorder
func (j *Journal) RecordOrder(ctx context.Context, req domain.OrderRequest, conf *domain.OrderConfirmation, orderErr error) error {
	var orderID, clientID, errStr sql.NullString
	if conf != nil {
		orderID = sql.NullString{String: conf.OrderID, Valid: conf.OrderID != ""}
		clientID = sql.NullString{String: conf.ClientOrderID, Valid: conf.ClientOrderID != ""}
	} else if req.ClientOrderID != "" {
		clientID = sql.NullString{String: req.ClientOrderID, Valid: true}
	}
	if orderErr != nil {
		errStr = sql.NullString{String: orderErr.Error(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, `
INSERT INTO orders(created_at, instrument, side, type, qty, price, order_id, client_order_id, error)
VALUES(?,?,?,?,?,?,?,?,?)
`, j.now().UTC().Format(time.RFC3339Nano), req.Instrument, string(req.Side), string(req.Type),
		req.Quantity, req.Price, orderID, clientID, errStr)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// Recent 最近 n 条记录，新的在前；instrument 为空时不过滤
func (j *Journal) Recent(ctx context.Context, instrument string, n int) ([]Entry, error) {
	if n <= 0 {
		n = 20
	}
	q := `
SELECT id, created_at, instrument, side, type, qty, price, order_id, client_order_id, error
FROM orders`
	args := []any{}
	if instrument != "" {
		q += ` WHERE instrument=?`
		args = append(args, instrument)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, n)

	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                         Entry
			createdAt                 string
			orderID, clientID, errStr sql.NullString
		)
		if err := rows.Scan(&e.ID, &createdAt, &e.Instrument, &e.Side, &e.Type, &e.Quantity, &e.Price, &orderID, &clientID, &errStr); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		e.OrderID = orderID.String
		e.ClientOrderID = clientID.String
		e.Error = errStr.String
		out = append(out, e)
	}
	return out, rows.Err()
}
