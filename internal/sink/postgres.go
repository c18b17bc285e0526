package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"elderpass/internal/checkin"
)

const tablePrefix = "elderpass_"

// Postgres stores check events in one table per day key. Each partition is
// created lazily on first write with the contract columns in order
// (positions 1-9) plus a trailing seq column that preserves append order on
// reads. An existing partition's columns are never altered.
type Postgres struct {
	connString string
	loc        *time.Location
	timeout    time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	db      *sql.DB
	created map[string]bool
}

// NewPostgres builds the adapter without connecting. The first Write or read
// authenticates and caches the handle; every later call shares it. The handle
// lives until Close at process exit.
func NewPostgres(connString string, loc *time.Location, timeout time.Duration, logger *slog.Logger) *Postgres {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Postgres{
		connString: connString,
		loc:        loc,
		timeout:    timeout,
		logger:     logger,
		created:    make(map[string]bool),
	}
}

// conn returns the cached handle, opening it on first use. The mutex resolves
// the first-caller race: concurrent first callers wait and then share the
// winner's handle rather than authenticating twice.
func (p *Postgres) conn(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		return p.db, nil
	}
	db, err := sql.Open("pgx", p.connString)
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrSinkUnavailable, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrSinkUnavailable, err)
	}
	p.logger.Info("durable sink connected")
	p.db = db
	return p.db, nil
}

// Close releases the cached handle.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

func tableFor(day string) string {
	return tablePrefix + strings.ReplaceAll(day, "-", "_")
}

func dayFor(table string) (string, bool) {
	rest, ok := strings.CutPrefix(table, tablePrefix)
	if !ok {
		return "", false
	}
	day := strings.ReplaceAll(rest, "_", "-")
	if !ValidDayKey(day) {
		return "", false
	}
	return day, true
}

func (p *Postgres) ensurePartition(ctx context.Context, db *sql.DB, day string) error {
	p.mu.Lock()
	done := p.created[day]
	p.mu.Unlock()
	if done {
		return nil
	}

	// Column order here is the durable contract; never reorder.
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %q (
			id TEXT NOT NULL,
			"lastName" TEXT NOT NULL,
			"firstName" TEXT NOT NULL,
			"middleName" TEXT NOT NULL,
			"teacherName" TEXT NOT NULL,
			"checkIn" TEXT NOT NULL,
			time TEXT NOT NULL,
			"studentEmail" TEXT NOT NULL,
			"teacherEmail" TEXT NOT NULL,
			seq BIGSERIAL
		)
	`, tableFor(day))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%w: create partition %s: %v", ErrSinkUnavailable, day, err)
	}

	p.mu.Lock()
	p.created[day] = true
	p.mu.Unlock()
	p.logger.Info("partition ready", "day", day)
	return nil
}

// Write records one event in the partition for its date.
func (p *Postgres) Write(ctx context.Context, evt checkin.Event) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	db, err := p.conn(ctx)
	if err != nil {
		return err
	}
	day := DayKey(evt.Time, p.loc)
	if err := p.ensurePartition(ctx, db, day); err != nil {
		return err
	}

	row := evt.Row()
	stmt := fmt.Sprintf(`
		INSERT INTO %q (id, "lastName", "firstName", "middleName", "teacherName", "checkIn", time, "studentEmail", "teacherEmail")
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, tableFor(day))
	args := make([]any, len(row))
	for i, v := range row {
		args[i] = v
	}
	if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("%w: append to %s: %v", ErrSinkUnavailable, day, err)
	}
	return nil
}

// Partitions lists the existing day keys, ascending.
func (p *Postgres) Partitions(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT tablename FROM pg_tables
		WHERE schemaname = current_schema() AND tablename LIKE $1
	`, tablePrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("%w: list partitions: %v", ErrSinkUnavailable, err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, fmt.Errorf("%w: list partitions: %v", ErrSinkUnavailable, err)
		}
		if day, ok := dayFor(table); ok {
			days = append(days, day)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list partitions: %v", ErrSinkUnavailable, err)
	}
	sort.Strings(days)
	return days, nil
}

// ReadDay returns one partition's events in append order.
func (p *Postgres) ReadDay(ctx context.Context, day string) ([]checkin.Event, error) {
	if !ValidDayKey(day) {
		return nil, fmt.Errorf("%w: bad day key %q", ErrSinkUnavailable, day)
	}
	days, err := p.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	exists := false
	for _, d := range days {
		if d == day {
			exists = true
			break
		}
	}
	if !exists {
		return nil, nil
	}
	return p.readPartition(ctx, day)
}

func (p *Postgres) readPartition(ctx context.Context, day string) ([]checkin.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	db, err := p.conn(ctx)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(`
		SELECT id, "lastName", "firstName", "middleName", "teacherName", "checkIn", time, "studentEmail", "teacherEmail"
		FROM %q ORDER BY seq
	`, tableFor(day))
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrSinkUnavailable, day, err)
	}
	defer rows.Close()

	var events []checkin.Event
	for rows.Next() {
		row := make([]string, len(checkin.Columns))
		dest := make([]any, len(row))
		for i := range row {
			dest[i] = &row[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrSinkUnavailable, day, err)
		}
		evt, err := checkin.EventFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrSinkUnavailable, day, err)
		}
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrSinkUnavailable, day, err)
	}
	return events, nil
}

// ReadAll returns every stored event, partitions in day order.
func (p *Postgres) ReadAll(ctx context.Context) ([]checkin.Event, error) {
	days, err := p.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	var all []checkin.Event
	for _, day := range days {
		events, err := p.readPartition(ctx, day)
		if err != nil {
			return nil, err
		}
		all = append(all, events...)
	}
	return all, nil
}
