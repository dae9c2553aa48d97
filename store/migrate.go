package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/tradeview/apperr"
	"github.com/rustyeddy/tradeview/market"
)

// ErrIncompatibleSchema is returned when an existing table does not match
// its declaration.
var ErrIncompatibleSchema = errors.New("incompatible schema")

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migration is one ordered schema change. Apply must be a no-op when its
// objects already exist and Revert a no-op when they are absent.
type Migration struct {
	Version string
	// Tables are checked against the live schema after Up.
	Tables []Table
	Apply  func(ctx context.Context, ex Execer) error
	Revert func(ctx context.Context, ex Execer) error
}

// TableMigration creates t on Apply and drops it on Revert.
func TableMigration(version string, t Table) Migration {
	return Migration{
		Version: version,
		Tables:  []Table{t},
		Apply: func(ctx context.Context, ex Execer) error {
			for _, stmt := range t.CreateStatements() {
				if _, err := ex.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("create %s: %w", t.Name, err)
				}
			}
			return nil
		},
		Revert: func(ctx context.Context, ex Execer) error {
			if _, err := ex.ExecContext(ctx, t.DropStatement()); err != nil {
				return fmt.Errorf("drop %s: %w", t.Name, err)
			}
			return nil
		},
	}
}

// Migrations is the canonical list, in the order it must be applied.
func Migrations() []Migration {
	return []Migration{
		TableMigration("m20240520_000001_create_symbol", SymbolTable),
		TableMigration("m20240520_000002_create_ohlc_data", OHLCTable),
		TableMigration("m20240520_000003_create_indicator_data", IndicatorTable),
		TableMigration("m20240520_000004_create_trading_signal", SignalTable),
		TableMigration("m20240520_000005_create_backtest_result", BacktestTable),
		TableMigration("m20240520_000006_create_trade_record", TradeTable),
	}
}

type MigrationStatus struct {
	Version   string
	Applied   bool
	AppliedAt *market.Timestamp
}

type Migrator struct {
	db         *sql.DB
	migrations []Migration
	now        func() time.Time
}

func NewMigrator(db *sql.DB, migrations []Migration, now func() time.Time) *Migrator {
	if now == nil {
		now = time.Now
	}
	return &Migrator{db: db, migrations: migrations, now: now}
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT NOT NULL PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL
		)`)
	return apperr.Database("create migration table", err)
}

func (m *Migrator) applied(ctx context.Context) (map[string]market.Timestamp, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, apperr.Database("read migration table", err)
	}
	defer rows.Close()

	out := map[string]market.Timestamp{}
	for rows.Next() {
		var (
			version string
			at      market.Timestamp
		)
		if err := rows.Scan(&version, &at); err != nil {
			return nil, apperr.Database("read migration table", err)
		}
		out[version] = at
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Database("read migration table", err)
	}
	return out, nil
}

// Up applies every pending migration in declaration order and returns the
// versions it applied. The first failure stops the run; units applied before
// it stay applied. Afterwards every applied table is verified against its
// declaration.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		op := "apply migration " + mig.Version
		if err := mig.Apply(ctx, m.db); err != nil {
			return done, apperr.Database(op, err)
		}
		if _, err := m.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			mig.Version, market.NewTimestamp(m.now())); err != nil {
			return done, apperr.Database(op, err)
		}
		done = append(done, mig.Version)
	}

	return done, m.Verify(ctx)
}

// Down reverts the last steps applied migrations in reverse declaration
// order. steps <= 0 reverts all of them.
func (m *Migrator) Down(ctx context.Context, steps int) ([]string, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	var reverted []string
	for i := len(m.migrations) - 1; i >= 0; i-- {
		if steps > 0 && len(reverted) == steps {
			break
		}
		mig := m.migrations[i]
		if _, ok := applied[mig.Version]; !ok {
			continue
		}
		op := "revert migration " + mig.Version
		if err := mig.Revert(ctx, m.db); err != nil {
			return reverted, apperr.Database(op, err)
		}
		if _, err := m.db.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, mig.Version); err != nil {
			return reverted, apperr.Database(op, err)
		}
		reverted = append(reverted, mig.Version)
	}
	return reverted, nil
}

func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		st := MigrationStatus{Version: mig.Version}
		if at, ok := applied[mig.Version]; ok {
			st.Applied = true
			st.AppliedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

// Verify checks every table of every applied migration. A missing table or
// column, or a column whose declared type differs, fails with
// ErrIncompatibleSchema.
func (m *Migrator) Verify(ctx context.Context) error {
	applied, err := m.applied(ctx)
	if err != nil {
		return err
	}
	for _, mig := range m.migrations {
		if _, ok := applied[mig.Version]; !ok {
			continue
		}
		for _, t := range mig.Tables {
			if err := m.verifyTable(ctx, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Migrator) verifyTable(ctx context.Context, t Table) error {
	op := "verify table " + t.Name
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(t.Name)))
	if err != nil {
		return apperr.Database(op, err)
	}
	defer rows.Close()

	live := map[string]string{}
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return apperr.Database(op, err)
		}
		live[name] = typ
	}
	if err := rows.Err(); err != nil {
		return apperr.Database(op, err)
	}

	if len(live) == 0 {
		return apperr.Database(op, fmt.Errorf("%w: table %s is missing", ErrIncompatibleSchema, t.Name))
	}
	for _, c := range t.Columns {
		typ, ok := live[c.Name]
		if !ok {
			return apperr.Database(op, fmt.Errorf("%w: %s.%s is missing", ErrIncompatibleSchema, t.Name, c.Name))
		}
		if !strings.EqualFold(typ, string(c.Type)) {
			return apperr.Database(op, fmt.Errorf("%w: %s.%s is %s, want %s",
				ErrIncompatibleSchema, t.Name, c.Name, typ, c.Type))
		}
	}
	return nil
}
