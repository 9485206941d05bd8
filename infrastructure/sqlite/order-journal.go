package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spooky-finn/marketsync/domain"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// OrderJournal persists the latest reconciled version of every order.
// Updates are written by a background worker; only the newest queued version of an order is written.
type OrderJournal struct {
	db     *sql.DB
	logger *zap.Logger

	mu      sync.Mutex
	pending map[journalKey]domain.Order
	// writeMu is held for a whole batch, Flush uses it to wait for the worker.
	writeMu sync.Mutex

	wake      chan struct{}
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type journalKey struct {
	symbol string
	id     string
}

func Open(path string, logger *zap.Logger) (*OrderJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer, sqlite serializes them anyway
	db.SetMaxOpenConns(1)

	j := &OrderJournal{
		db:      db,
		logger:  logger.Named("order-journal"),
		pending: make(map[journalKey]domain.Order),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	go j.run()
	return j, nil
}

func (j *OrderJournal) migrate() error {
	_, err := j.db.Exec(`CREATE TABLE IF NOT EXISTS orders (
		symbol TEXT NOT NULL,
		order_id TEXT NOT NULL,
		sequence INTEGER NOT NULL,
		status TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		updated_unix_millis INTEGER NOT NULL,
		PRIMARY KEY (symbol, order_id)
	)`)
	return err
}

// Save upserts order. An older sequence never overwrites a newer one.
func (j *OrderJournal) Save(ctx context.Context, order domain.Order) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order %s: %w", order.ID, err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO orders (symbol, order_id, sequence, status, payload_json, updated_unix_millis)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, order_id) DO UPDATE SET
			sequence = excluded.sequence,
			status = excluded.status,
			payload_json = excluded.payload_json,
			updated_unix_millis = excluded.updated_unix_millis
		WHERE excluded.sequence >= orders.sequence`,
		order.Symbol, order.ID, order.Sequence, string(order.Status), string(payload), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save order %s: %w", order.ID, err)
	}
	return nil
}

// OrderUpdated makes the journal an order sink of the reconciler. It only queues the order.
func (j *OrderJournal) OrderUpdated(order domain.Order) {
	key := journalKey{symbol: order.Symbol, id: order.ID}

	j.mu.Lock()
	if queued, ok := j.pending[key]; !ok || order.Sequence >= queued.Sequence {
		j.pending[key] = order
	}
	j.mu.Unlock()

	select {
	case j.wake <- struct{}{}:
	default:
	}
}

func (j *OrderJournal) run() {
	defer close(j.stopped)
	for {
		select {
		case <-j.wake:
			j.Flush()
		case <-j.done:
			j.Flush()
			return
		}
	}
}

// Flush writes every queued update and returns once they are on disk.
func (j *OrderJournal) Flush() {
	j.writeMu.Lock()
	defer j.writeMu.Unlock()

	j.mu.Lock()
	batch := j.pending
	j.pending = make(map[journalKey]domain.Order)
	j.mu.Unlock()

	for _, order := range batch {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := j.Save(ctx, order); err != nil {
			j.logger.Error("journal write failed", zap.String("order_id", order.ID), zap.Error(err))
		}
		cancel()
	}
}

// Load returns the journaled orders, least recently updated first.
func (j *OrderJournal) Load(ctx context.Context) ([]domain.Order, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT payload_json FROM orders ORDER BY updated_unix_millis, rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var order domain.Order
		if err := json.Unmarshal([]byte(payload), &order); err != nil {
			return nil, fmt.Errorf("corrupt journal entry: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Close writes what is still queued and closes the database.
func (j *OrderJournal) Close() error {
	j.closeOnce.Do(func() {
		close(j.done)
		<-j.stopped
	})
	return j.db.Close()
}
