package cache

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"AShareLens/internal/model"
)

// SQLiteStore caches downloaded bars in a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, log: log, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite store opened")
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bars (
			symbol     TEXT    NOT NULL,
			period     TEXT    NOT NULL,
			adjust     TEXT    NOT NULL,
			date       INTEGER NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			volume     REAL,
			amount     REAL,
			amplitude  REAL,
			pct_change REAL,
			change     REAL,
			turnover   REAL,
			PRIMARY KEY (symbol, period, adjust, date)
		)`,

		`CREATE TABLE IF NOT EXISTS bar_ranges (
			symbol      TEXT    NOT NULL,
			period      TEXT    NOT NULL,
			adjust      TEXT    NOT NULL,
			range_start INTEGER NOT NULL,
			range_end   INTEGER NOT NULL,
			fields      INTEGER NOT NULL,
			fetched_at  INTEGER NOT NULL,
			PRIMARY KEY (symbol, period, adjust)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// dayKey is YYYYMMDD in exchange time.
func dayKey(t time.Time) int64 {
	t = t.In(model.Shanghai)
	return int64(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

func startKey(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return dayKey(t)
}

func (s *SQLiteStore) endKey(t time.Time) int64 {
	if t.IsZero() {
		return dayKey(s.now())
	}
	return dayKey(t)
}

func normalize(req model.BarRequest) model.BarRequest {
	if req.Period == "" {
		req.Period = model.PeriodDaily
	}
	return req
}

// marketCloseHour is the end of the A-share continuous session, in exchange time.
const marketCloseHour = 15

// lastClose returns the most recent 15:00 Shanghai at or before t.
func lastClose(t time.Time) time.Time {
	local := t.In(model.Shanghai)
	c := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, 0, 0, 0, model.Shanghai)
	if t.Before(c) {
		c = c.AddDate(0, 0, -1)
	}
	return c
}

// LoadBars serves req when a previous save covered its whole range. An open end is covered by a
// save made the same day. When the range reaches today, a save made before the last close holds
// intraday bars and is treated as a miss.
func (s *SQLiteStore) LoadBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, bool, error) {
	req = normalize(req)
	var rangeStart, rangeEnd, fields, fetchedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT range_start, range_end, fields, fetched_at FROM bar_ranges
		 WHERE symbol = ? AND period = ? AND adjust = ?`,
		req.Symbol, string(req.Period), string(req.Adjust),
	).Scan(&rangeStart, &rangeEnd, &fields, &fetchedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load range: %w", err)
	}

	wantStart := startKey(req.Start)
	if rangeStart != 0 && (wantStart == 0 || rangeStart > wantStart) {
		return nil, false, nil
	}
	wantEnd := s.endKey(req.End)
	if rangeEnd < wantEnd {
		return nil, false, nil
	}
	now := s.now()
	if fetched := time.Unix(fetchedAt, 0); wantEnd >= dayKey(now) && fetched.Before(lastClose(now)) {
		s.log.Debug().Str("symbol", req.Symbol).Time("fetched_at", fetched).Msg("cached bars predate the close")
		return nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, open, high, low, close, volume, amount, amplitude, pct_change, change, turnover
		 FROM bars WHERE symbol = ? AND period = ? AND adjust = ? ORDER BY date`,
		req.Symbol, string(req.Period), string(req.Adjust))
	if err != nil {
		return nil, false, fmt.Errorf("load bars: %w", err)
	}
	defer rows.Close()

	series := &model.PriceSeries{
		Symbol: req.Symbol, Period: req.Period, Adjust: req.Adjust,
		Fields: model.Field(fields), FetchedAt: time.Unix(fetchedAt, 0),
	}
	for rows.Next() {
		var date int64
		var v [10]sql.NullFloat64
		if err := rows.Scan(&date, &v[0], &v[1], &v[2], &v[3], &v[4], &v[5], &v[6], &v[7], &v[8], &v[9]); err != nil {
			return nil, false, fmt.Errorf("scan bar: %w", err)
		}
		series.Bars = append(series.Bars, model.Bar{
			Date: time.Unix(date, 0).In(model.Shanghai),
			Open: nan(v[0]), High: nan(v[1]), Low: nan(v[2]), Close: nan(v[3]), Volume: nan(v[4]),
			Amount: nan(v[5]), Amplitude: nan(v[6]), PctChange: nan(v[7]), Change: nan(v[8]), Turnover: nan(v[9]),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("load bars: %w", err)
	}
	return series.Window(req.Start, req.End), true, nil
}

// SaveBars replaces the cached bars for the request key and records the covered range.
func (s *SQLiteStore) SaveBars(ctx context.Context, req model.BarRequest, series *model.PriceSeries) error {
	req = normalize(req)
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	key := []any{req.Symbol, string(req.Period), string(req.Adjust)}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bars WHERE symbol = ? AND period = ? AND adjust = ?`, key...); err != nil {
		return fmt.Errorf("clear bars: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO bars
		(symbol, period, adjust, date, open, high, low, close, volume, amount, amplitude, pct_change, change, turnover)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, b := range series.Bars {
		if _, err := stmt.ExecContext(ctx, req.Symbol, string(req.Period), string(req.Adjust), b.Date.Unix(),
			null(b.Open), null(b.High), null(b.Low), null(b.Close), null(b.Volume),
			null(b.Amount), null(b.Amplitude), null(b.PctChange), null(b.Change), null(b.Turnover),
		); err != nil {
			return fmt.Errorf("insert bar: %w", err)
		}
	}

	fetched := series.FetchedAt
	if fetched.IsZero() {
		fetched = s.now()
	}
	end := dayKey(fetched)
	if !req.End.IsZero() {
		end = dayKey(req.End)
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO bar_ranges
		(symbol, period, adjust, range_start, range_end, fields, fetched_at) VALUES (?,?,?,?,?,?,?)`,
		req.Symbol, string(req.Period), string(req.Adjust), startKey(req.Start), end, int64(series.Fields), fetched.Unix(),
	); err != nil {
		return fmt.Errorf("save range: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) Close() error {
	s.log.Info().Msg("closing sqlite store")
	return s.db.Close()
}

// null stores NaN as SQL NULL.
func null(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func nan(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
