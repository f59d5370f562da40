package storage

// sqlite.go: ledger append-only y estado de órdenes.
//
// Estrategia:
//   - `ledger_events`: una fila por apertura o cierre. Nunca se actualiza ni se
//     borra (los triggers lo impiden); reproducirla reconstruye el ledger.
//   - `orders`: una fila por orden enviada. El estado PENDING sobrevive a un
//     reinicio y se reconcilia en el siguiente ciclo.
//   - `cycles`: resumen ligero por ciclo. Prune automático al arrancar (> 30d).
//   - Importes como TEXT decimal (exactos), fechas como RFC3339 UTC de ancho fijo.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_events (
    seq           INTEGER PRIMARY KEY AUTOINCREMENT,
    type          TEXT     NOT NULL,
    at            DATETIME NOT NULL,
    position_id   TEXT     NOT NULL,
    order_id      TEXT     NOT NULL DEFAULT '',
    market_id     TEXT     NOT NULL,
    question      TEXT     NOT NULL DEFAULT '',
    kind          TEXT     NOT NULL,
    side          TEXT     NOT NULL,
    entry_price   REAL     NOT NULL,
    size          TEXT     NOT NULL,
    opened_at     DATETIME NOT NULL,
    status        TEXT     NOT NULL,
    closed_at     DATETIME,
    exit_price    REAL     NOT NULL DEFAULT 0,
    realized_pnl  TEXT     NOT NULL DEFAULT '0',
    exit_reason   TEXT     NOT NULL DEFAULT ''
);

CREATE TRIGGER IF NOT EXISTS ledger_events_no_update
BEFORE UPDATE ON ledger_events
BEGIN
    SELECT RAISE(ABORT, 'ledger_events is append-only');
END;

CREATE TRIGGER IF NOT EXISTS ledger_events_no_delete
BEFORE DELETE ON ledger_events
BEGIN
    SELECT RAISE(ABORT, 'ledger_events is append-only');
END;

CREATE TABLE IF NOT EXISTS orders (
    order_id      TEXT PRIMARY KEY,
    market_id     TEXT     NOT NULL,
    kind          TEXT     NOT NULL,
    side          TEXT     NOT NULL,
    price         REAL     NOT NULL,
    size          TEXT     NOT NULL,
    status        TEXT     NOT NULL,
    submitted_at  DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cycles (
    id             TEXT PRIMARY KEY,
    started_at     DATETIME NOT NULL,
    duration_ms    INTEGER  NOT NULL DEFAULT 0,
    snapshots      INTEGER  NOT NULL DEFAULT 0,
    invalid        INTEGER  NOT NULL DEFAULT 0,
    arbitrage      INTEGER  NOT NULL DEFAULT 0,
    value_bet      INTEGER  NOT NULL DEFAULT 0,
    quality_market INTEGER  NOT NULL DEFAULT 0,
    approved       INTEGER  NOT NULL DEFAULT 0,
    rejected       INTEGER  NOT NULL DEFAULT 0,
    failed         INTEGER  NOT NULL DEFAULT 0,
    exits          INTEGER  NOT NULL DEFAULT 0,
    gate_status    TEXT     NOT NULL,
    daily_pnl      TEXT     NOT NULL DEFAULT '0',
    bankroll       TEXT     NOT NULL DEFAULT '0',
    error          TEXT     NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ledger_position ON ledger_events(position_id);
CREATE INDEX IF NOT EXISTS idx_orders_status   ON orders(status);
CREATE INDEX IF NOT EXISTS idx_cycles_at       ON cycles(started_at DESC);
`

const (
	retentionCycles = 30 * 24 * time.Hour
	// ancho fijo: el orden lexicográfico coincide con el cronológico
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStorage implementa ports.LedgerStore usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
// Aplica el schema y limpia ciclos antiguos. El ledger nunca se poda.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, now: time.Now}
	s.pruneOld(context.Background())
	return s, nil
}

// AppendLedgerEvent añade un evento al ledger y devuelve su secuencia.
func (s *SQLiteStorage) AppendLedgerEvent(ctx context.Context, ev domain.LedgerEvent) (int64, error) {
	p := ev.Position
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ledger_events
			(type, at, position_id, order_id, market_id, question, kind, side,
			 entry_price, size, opened_at, status, closed_at, exit_price,
			 realized_pnl, exit_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Type), formatTime(ev.At), p.ID, p.OrderID, p.MarketID, p.Question,
		p.Kind.String(), string(p.Side), p.EntryPrice, p.Size.String(),
		formatTime(p.OpenedAt), string(p.Status), nullTime(p.ClosedAt), p.ExitPrice,
		p.RealizedPnL.String(), p.ExitReason,
	)
	if err != nil {
		return 0, fmt.Errorf("storage.AppendLedgerEvent: insert %s %s: %w", ev.Type, p.ID, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("storage.AppendLedgerEvent: last insert id: %w", err)
	}
	return seq, nil
}

// LoadLedgerEvents devuelve todos los eventos en orden de secuencia.
func (s *SQLiteStorage) LoadLedgerEvents(ctx context.Context) ([]domain.LedgerEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, type, at, position_id, order_id, market_id, question, kind,
		       side, entry_price, size, opened_at, status, closed_at, exit_price,
		       realized_pnl, exit_reason
		FROM ledger_events
		ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadLedgerEvents: query: %w", err)
	}
	defer rows.Close()

	var events []domain.LedgerEvent
	for rows.Next() {
		var (
			ev                          domain.LedgerEvent
			p                           domain.Position
			typ, at, kind, side, status string
			size, pnl, openedAt         string
			closedAt                    sql.NullString
		)
		if err := rows.Scan(
			&ev.Seq, &typ, &at, &p.ID, &p.OrderID, &p.MarketID, &p.Question, &kind,
			&side, &p.EntryPrice, &size, &openedAt, &status, &closedAt, &p.ExitPrice,
			&pnl, &p.ExitReason,
		); err != nil {
			return nil, fmt.Errorf("storage.LoadLedgerEvents: scan row: %w", err)
		}

		k, ok := domain.ParseOpportunityKind(kind)
		if !ok {
			return nil, fmt.Errorf("storage.LoadLedgerEvents: event %d: unknown kind %q", ev.Seq, kind)
		}
		if p.Size, err = decimal.NewFromString(size); err != nil {
			return nil, fmt.Errorf("storage.LoadLedgerEvents: event %d: size: %w", ev.Seq, err)
		}
		if p.RealizedPnL, err = decimal.NewFromString(pnl); err != nil {
			return nil, fmt.Errorf("storage.LoadLedgerEvents: event %d: pnl: %w", ev.Seq, err)
		}
		p.Kind = k
		p.Side = domain.Side(side)
		p.Status = domain.PositionStatus(status)
		p.OpenedAt = parseTime(openedAt)
		if closedAt.Valid {
			p.ClosedAt = parseTime(closedAt.String)
		}

		ev.Type = domain.LedgerEventType(typ)
		ev.At = parseTime(at)
		ev.Position = p
		events = append(events, ev)
	}
	return events, rows.Err()
}

// SaveOrder registra una orden enviada. Reenviar la misma orden (mismo ID)
// solo actualiza su estado.
func (s *SQLiteStorage) SaveOrder(ctx context.Context, rec domain.OrderRecord) error {
	in := rec.Intent
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = rec.SubmittedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders
			(order_id, market_id, kind, side, price, size, status, submitted_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			status     = excluded.status,
			updated_at = excluded.updated_at`,
		in.OrderID, in.MarketID, in.Kind.String(), string(in.Side), in.Price, in.Size.String(),
		string(rec.Status), formatTime(rec.SubmittedAt), formatTime(updated),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOrder: %s: %w", in.OrderID, err)
	}
	return nil
}

// UpdateOrderStatus cambia el estado de una orden ya registrada.
func (s *SQLiteStorage) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE order_id = ?`,
		string(status), formatTime(at), orderID,
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateOrderStatus: %s: %w", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateOrderStatus: order %s not found", orderID)
	}
	return nil
}

// PendingOrders devuelve las órdenes PENDING por orden de envío.
func (s *SQLiteStorage) PendingOrders(ctx context.Context) ([]domain.OrderRecord, error) {
	return s.ordersByStatus(ctx, domain.OrderPending)
}

// Orders devuelve las órdenes con el estado dado ("" = todas).
func (s *SQLiteStorage) Orders(ctx context.Context, status domain.OrderStatus) ([]domain.OrderRecord, error) {
	return s.ordersByStatus(ctx, status)
}

func (s *SQLiteStorage) ordersByStatus(ctx context.Context, status domain.OrderStatus) ([]domain.OrderRecord, error) {
	query := `SELECT order_id, market_id, kind, side, price, size, status, submitted_at, updated_at FROM orders`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY submitted_at ASC, order_id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage.Orders: query: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderRecord
	for rows.Next() {
		var (
			rec                                  domain.OrderRecord
			kind, side, st, size, submitted, upd string
		)
		if err := rows.Scan(&rec.Intent.OrderID, &rec.Intent.MarketID, &kind, &side,
			&rec.Intent.Price, &size, &st, &submitted, &upd); err != nil {
			return nil, fmt.Errorf("storage.Orders: scan row: %w", err)
		}
		k, ok := domain.ParseOpportunityKind(kind)
		if !ok {
			return nil, fmt.Errorf("storage.Orders: order %s: unknown kind %q", rec.Intent.OrderID, kind)
		}
		if rec.Intent.Size, err = decimal.NewFromString(size); err != nil {
			return nil, fmt.Errorf("storage.Orders: order %s: size: %w", rec.Intent.OrderID, err)
		}
		rec.Intent.Kind = k
		rec.Intent.Side = domain.Side(side)
		rec.Status = domain.OrderStatus(st)
		rec.SubmittedAt = parseTime(submitted)
		rec.UpdatedAt = parseTime(upd)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveCycle persiste el resumen de un ciclo.
func (s *SQLiteStorage) SaveCycle(ctx context.Context, r domain.CycleReport) error {
	approved, rejected, failed := r.Counts()
	var errText string
	if r.Err != nil {
		errText = r.Err.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cycles
			(id, started_at, duration_ms, snapshots, invalid, arbitrage, value_bet,
			 quality_market, approved, rejected, failed, exits, gate_status,
			 daily_pnl, bankroll, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID, formatTime(r.StartedAt), r.Duration.Milliseconds(), r.Snapshots, r.Invalid,
		r.Opportunities[domain.KindArbitrage], r.Opportunities[domain.KindValueBet],
		r.Opportunities[domain.KindQualityMarket], approved, rejected, failed, len(r.Exits),
		r.Risk.Status.String(), r.Risk.DailyRealizedPnL.String(), r.Bankroll.String(), errText,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveCycle: insert %s: %w", r.CycleID, err)
	}
	return nil
}

// CycleRow es la vista persistida de un ciclo.
type CycleRow struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	Snapshots int
	Approved  int
	Rejected  int
	Failed    int
	Exits     int
	Gate      string
	DailyPnL  decimal.Decimal
	Err       string
}

// RecentCycles devuelve los últimos ciclos, el más reciente primero.
func (s *SQLiteStorage) RecentCycles(ctx context.Context, limit int) ([]CycleRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, snapshots, approved, rejected, failed,
		       exits, gate_status, daily_pnl, error
		FROM cycles
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.RecentCycles: query: %w", err)
	}
	defer rows.Close()

	var out []CycleRow
	for rows.Next() {
		var (
			c            CycleRow
			started, pnl string
			ms           int64
		)
		if err := rows.Scan(&c.ID, &started, &ms, &c.Snapshots, &c.Approved, &c.Rejected,
			&c.Failed, &c.Exits, &c.Gate, &pnl, &c.Err); err != nil {
			return nil, fmt.Errorf("storage.RecentCycles: scan row: %w", err)
		}
		c.StartedAt = parseTime(started)
		c.Duration = time.Duration(ms) * time.Millisecond
		c.DailyPnL, _ = decimal.NewFromString(pnl)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping comprueba que la base de datos responde. Lo usa /healthz.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina ciclos antiguos. Ledger y órdenes no se tocan.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := s.now().UTC().Add(-retentionCycles)
	s.db.ExecContext(ctx, `DELETE FROM cycles WHERE started_at < ?`, formatTime(cutoff))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse("2006-01-02 15:04:05", s)
	}
	return t
}
