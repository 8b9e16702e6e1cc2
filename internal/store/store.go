// Package store keeps the history of script runs in a SQL database and lets
// scripts run their own queries against it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"ksx/internal/script"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Store is a run history backed by database/sql.
type Store struct {
	DB      *sql.DB
	Driver  string
	session string
}

// ParseDSN picks the driver for dsn. "mysql://" and "postgres://" select
// those drivers; "sqlite3://" or a plain path select sqlite3.
func ParseDSN(dsn string) (driver, source string) {
	switch {
	case strings.HasPrefix(dsn, "mysql://"):
		return DriverMySQL, strings.TrimPrefix(dsn, "mysql://")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return DriverPostgres, dsn
	case strings.HasPrefix(dsn, "sqlite3://"):
		return DriverSQLite, strings.TrimPrefix(dsn, "sqlite3://")
	}
	return DriverSQLite, dsn
}

// Open connects to dsn and creates the history table when it is missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	driver, source := ParseDSN(dsn)
	db, err := sql.Open(driver, source)
	if err != nil {
		slog.Error("failed to open history database",
			slog.String("driver", driver),
			slog.Any("error", err))
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == DriverSQLite {
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	}
	s := &Store{
		DB:      db,
		Driver:  driver,
		session: strconv.FormatInt(time.Now().UnixNano(), 36),
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("history database ready", slog.String("driver", driver))
	return s, nil
}

func (s *Store) Close() error { return s.DB.Close() }

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS script_runs (
		run_key VARCHAR(64) NOT NULL PRIMARY KEY,
		session VARCHAR(32) NOT NULL,
		id INTEGER NOT NULL,
		file VARCHAR(1024) NOT NULL,
		status VARCHAR(32) NOT NULL,
		runs_in_emu INTEGER NOT NULL,
		start_time BIGINT NOT NULL,
		end_time BIGINT NOT NULL,
		stop_time BIGINT NOT NULL,
		error TEXT
	)`)
	if err != nil {
		return fmt.Errorf("create script_runs: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders for drivers that number them.
func (s *Store) rebind(query string) string {
	if s.Driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Save records the current state of a run, replacing an earlier one.
func (s *Store) Save(ctx context.Context, info script.RunInfo) error {
	key := fmt.Sprintf("%s-%d", s.session, info.ID)
	emu := 0
	if info.RunsInEmu {
		emu = 1
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM script_runs WHERE run_key = ?"), key); err != nil {
		tx.Rollback()
		return err
	}
	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO script_runs
		(run_key, session, id, file, status, runs_in_emu, start_time, end_time, stop_time, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		key, s.session, info.ID, info.File, string(info.Status), emu,
		millis(info.StartTime), millis(info.EndTime), millis(info.StopTime), info.Error)
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// StatusChanged implements script.StatusListener.
func (s *Store) StatusChanged(info script.RunInfo) {
	if err := s.Save(context.Background(), info); err != nil {
		slog.Error("failed to save script run",
			slog.Int("script", info.ID),
			slog.Any("error", err))
	}
}

// Recent returns up to limit runs, newest first, across all sessions.
func (s *Store) Recent(ctx context.Context, limit int) ([]script.RunInfo, error) {
	rows, err := s.DB.QueryContext(ctx, s.rebind(`SELECT id, file, status, runs_in_emu,
		start_time, end_time, stop_time, error
		FROM script_runs ORDER BY start_time DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []script.RunInfo
	for rows.Next() {
		var info script.RunInfo
		var status string
		var emu int
		var start, end, stop int64
		var errText sql.NullString
		if err := rows.Scan(&info.ID, &info.File, &status, &emu, &start, &end, &stop, &errText); err != nil {
			return nil, err
		}
		info.Status = script.Status(status)
		info.RunsInEmu = emu != 0
		info.StartTime = fromMillis(start)
		info.EndTime = fromMillis(end)
		info.StopTime = fromMillis(stop)
		info.Error = errText.String
		out = append(out, info)
	}
	return out, rows.Err()
}
