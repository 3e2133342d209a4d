package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"BandSentinel/internal/logger"
	"BandSentinel/internal/model"
)

var (
	_ PriceStore     = (*SQLStore)(nil)
	_ SignalRecorder = (*SQLStore)(nil)
)

// SQLStore implements PriceStore and SignalRecorder on SQLite or PostgreSQL.
type SQLStore struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
	log    zerolog.Logger
}

// Open connects to driver ("sqlite" or "postgres") and runs migrations.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	switch driver {
	case "sqlite":
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// WAL lets readers run while a collector batch is being written.
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	s := &SQLStore{db: db, driver: driver, log: logger.Component("store")}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s.log.Info().Str("driver", driver).Msg("store opened")
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS company_info (
			code        VARCHAR(20) PRIMARY KEY,
			company     VARCHAR(60) NOT NULL,
			last_update VARCHAR(10)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_company_name ON company_info(company)`,

		`CREATE TABLE IF NOT EXISTS daily_price (
			code   VARCHAR(20) NOT NULL,
			date   VARCHAR(10) NOT NULL,
			open   DOUBLE PRECISION,
			high   DOUBLE PRECISION,
			low    DOUBLE PRECISION,
			close  DOUBLE PRECISION,
			differ DOUBLE PRECISION,
			volume BIGINT,
			PRIMARY KEY (code, date)
		)`,

		`CREATE TABLE IF NOT EXISTS signals (
			code       VARCHAR(20) NOT NULL,
			strategy   VARCHAR(40) NOT NULL,
			date       VARCHAR(10) NOT NULL,
			direction  VARCHAR(4) NOT NULL,
			close      DOUBLE PRECISION,
			created_at BIGINT NOT NULL,
			PRIMARY KEY (code, strategy, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_date ON signals(date)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
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

func formatDate(t time.Time) string { return t.Format(model.DateLayout) }

func parseDate(s string) (time.Time, error) {
	// postgres may hand back a longer timestamp text when the column was created elsewhere
	if len(s) > len(model.DateLayout) {
		s = s[:len(model.DateLayout)]
	}
	return time.Parse(model.DateLayout, s)
}

// UpsertCompany inserts or renames one listing. A zero LastUpdate keeps the
// stored refresh date.
func (s *SQLStore) UpsertCompany(ctx context.Context, c model.Company) error {
	_, err := s.UpsertCompanies(ctx, []model.Company{c})
	return err
}

// UpsertCompanies writes listings in one transaction.
func (s *SQLStore) UpsertCompanies(ctx context.Context, companies []model.Company) (int, error) {
	if len(companies) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO company_info (code, company, last_update)
		VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET company = excluded.company,
			last_update = COALESCE(excluded.last_update, company_info.last_update)`))
	if err != nil {
		return 0, fmt.Errorf("prepare company upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range companies {
		var last any
		if !c.LastUpdate.IsZero() {
			last = formatDate(c.LastUpdate)
		}
		if _, err := stmt.ExecContext(ctx, c.Code, c.Name, last); err != nil {
			return 0, fmt.Errorf("upsert company %s: %w", c.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit companies: %w", err)
	}
	return len(companies), nil
}

// ListingUpdated returns the latest listing refresh date, false if the
// listing was never refreshed.
func (s *SQLStore) ListingUpdated(ctx context.Context) (time.Time, bool, error) {
	var last sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(last_update) FROM company_info`).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("query listing update: %w", err)
	}
	if !last.Valid || last.String == "" {
		return time.Time{}, false, nil
	}
	t, err := parseDate(last.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("listing update %q: %w", last.String, err)
	}
	return t, true, nil
}

func (s *SQLStore) Companies(ctx context.Context) ([]model.Company, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT code, company, last_update FROM company_info ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query companies: %w", err)
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		var c model.Company
		var last sql.NullString
		if err := rows.Scan(&c.Code, &c.Name, &last); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		if last.Valid && last.String != "" {
			if c.LastUpdate, err = parseDate(last.String); err != nil {
				return nil, fmt.Errorf("company %s last_update: %w", c.Code, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ResolveCode accepts either a listing code or a company name.
func (s *SQLStore) ResolveCode(ctx context.Context, codeOrName string) (string, error) {
	key := strings.TrimSpace(codeOrName)
	var code string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT code FROM company_info WHERE code = ? OR company = ? ORDER BY code LIMIT 1`),
		key, key).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrUnknownInstrument, key)
	}
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", key, err)
	}
	return code, nil
}

// UpsertBars writes bars in one transaction, replacing rows with the same date.
func (s *SQLStore) UpsertBars(ctx context.Context, code string, bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	if err := model.ValidateBars(bars); err != nil {
		return 0, fmt.Errorf("%s: %w", code, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO daily_price
		(code, date, open, high, low, close, differ, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (code, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, differ = excluded.differ, volume = excluded.volume`))
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, code, formatDate(b.Date),
			b.Open, b.High, b.Low, b.Close, b.ChangePct, b.Volume); err != nil {
			return 0, fmt.Errorf("upsert %s %s: %w", code, formatDate(b.Date), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(bars), nil
}

// LastDate returns the newest stored bar date of code, or of any instrument
// when code is empty. The bool is false when nothing is stored.
func (s *SQLStore) LastDate(ctx context.Context, code string) (time.Time, bool, error) {
	var last sql.NullString
	var err error
	if code == "" {
		err = s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM daily_price`).Scan(&last)
	} else {
		err = s.db.QueryRowContext(ctx, s.rebind(`SELECT MAX(date) FROM daily_price WHERE code = ?`), code).Scan(&last)
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last date: %w", err)
	}
	if !last.Valid || last.String == "" {
		return time.Time{}, false, nil
	}
	t, err := parseDate(last.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last date: %w", err)
	}
	return t, true, nil
}

func (s *SQLStore) companyName(ctx context.Context, code string) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT company FROM company_info WHERE code = ?`), code).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

func (s *SQLStore) GetPrice(ctx context.Context, code string, start, end time.Time) (*model.PriceSeries, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT date, open, high, low, close, differ, volume
		FROM daily_price WHERE code = ? AND date >= ? AND date <= ? ORDER BY date`),
		code, formatDate(start), formatDate(end))
	if err != nil {
		return nil, fmt.Errorf("query prices %s: %w", code, err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var date string
		var differ sql.NullFloat64
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &differ, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price %s: %w", code, err)
		}
		if b.Date, err = parseDate(date); err != nil {
			return nil, fmt.Errorf("price %s date %q: %w", code, date, err)
		}
		b.ChangePct = differ.Float64
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	name, listed, err := s.companyName(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", code, err)
	}
	if len(bars) == 0 {
		if !listed {
			if _, stored, err := s.LastDate(ctx, code); err != nil || !stored {
				return nil, fmt.Errorf("%w: %s", ErrUnknownInstrument, code)
			}
		}
		return nil, fmt.Errorf("%w: %s %s..%s", ErrEmptyRange, code, formatDate(start), formatDate(end))
	}
	return model.NewPriceSeries(code, name, bars)
}

// RecordSignals upserts signals keyed by (code, strategy, date).
func (s *SQLStore) RecordSignals(ctx context.Context, code string, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.rebind(`INSERT INTO signals
		(code, strategy, date, direction, close, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (code, strategy, date) DO UPDATE SET
			direction = excluded.direction, close = excluded.close`))
	if err != nil {
		return fmt.Errorf("prepare signal upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, sig := range signals {
		if _, err := stmt.ExecContext(ctx, code, sig.Strategy, formatDate(sig.Date),
			string(sig.Direction), sig.Close, now); err != nil {
			return fmt.Errorf("record signal %s %s: %w", code, formatDate(sig.Date), err)
		}
	}
	return tx.Commit()
}

// Signals returns recorded signals of code dated on or after since. An empty
// strategy matches every strategy.
func (s *SQLStore) Signals(ctx context.Context, code, strategy string, since time.Time) ([]model.Signal, error) {
	query := `SELECT strategy, date, direction, close FROM signals WHERE code = ? AND date >= ?`
	args := []any{code, formatDate(since)}
	if strategy != "" {
		query += ` AND strategy = ?`
		args = append(args, strategy)
	}
	query += ` ORDER BY date, strategy`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query signals %s: %w", code, err)
	}
	defer rows.Close()

	var out []model.Signal
	for rows.Next() {
		var sig model.Signal
		var date, dir string
		if err := rows.Scan(&sig.Strategy, &date, &dir, &sig.Close); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		if sig.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		sig.Direction = model.Direction(dir)
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *SQLStore) Close() error {
	s.log.Info().Msg("closing store")
	return s.db.Close()
}
