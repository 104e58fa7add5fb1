package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Expected tables, in creation order.
var expectedTables = []string{"error_records", "ip_user_mappings", "ignore_patterns", "app_settings"}

// Creation strategies, most preferred first.
const (
	StrategyMigrate   = "migrate"
	StrategyDirectDDL = "direct_ddl"
	StrategyMinimal   = "minimal_schema"
)

// SchemaAttempt records one creation attempt for operator diagnosis.
type SchemaAttempt struct {
	Strategy string    `json:"strategy"`
	Table    string    `json:"table,omitempty"`
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// SchemaReport is the structured outcome of an EnsureSchema run. It is kept
// for the diagnostics endpoint so table-creation failures are visible rather
// than silent.
type SchemaReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Strategy   string          `json:"strategy_succeeded,omitempty"`
	Degraded   bool            `json:"degraded"`
	Healthy    bool            `json:"healthy"`
	Attempts   []SchemaAttempt `json:"attempts"`
}

func (r *SchemaReport) record(strategy, table string, err error) {
	a := SchemaAttempt{Strategy: strategy, Table: table, OK: err == nil, At: time.Now().UTC()}
	if err != nil {
		a.Error = err.Error()
	}
	r.Attempts = append(r.Attempts, a)
}

const errorRecordsDDL = `
CREATE TABLE IF NOT EXISTS error_records (
    id BIGSERIAL PRIMARY KEY,
    timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    error_type VARCHAR(50) NOT NULL,
    error_message TEXT NOT NULL,
    error_source VARCHAR(255),
    error_line INT,
    error_column INT,
    stack_trace TEXT,
    user_agent TEXT,
    page_url VARCHAR(255),
    user_ip VARCHAR(45),
    user_id BIGINT,
    associated_user_id BIGINT,
    session_id VARCHAR(255),
    is_login_page BOOLEAN NOT NULL DEFAULT FALSE,
    additional_data JSONB
)`

const ipMappingsDDL = `
CREATE TABLE IF NOT EXISTS ip_user_mappings (
    id BIGSERIAL PRIMARY KEY,
    ip_address VARCHAR(45) NOT NULL,
    user_id BIGINT NOT NULL,
    first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    last_seen TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    login_count INT NOT NULL DEFAULT 1,
    CONSTRAINT uq_ip_user UNIQUE (ip_address, user_id)
)`

const ignorePatternsDDL = `
CREATE TABLE IF NOT EXISTS ignore_patterns (
    id BIGSERIAL PRIMARY KEY,
    pattern_type VARCHAR(50) NOT NULL,
    pattern_value TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    notes TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    ignore_count BIGINT NOT NULL DEFAULT 0,
    last_ignored TIMESTAMPTZ,
    CONSTRAINT uq_pattern UNIQUE (pattern_type, pattern_value)
)`

const appSettingsDDL = `
CREATE TABLE IF NOT EXISTS app_settings (
    key VARCHAR(100) PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

var tableDDL = map[string]string{
	"error_records":    errorRecordsDDL,
	"ip_user_mappings": ipMappingsDDL,
	"ignore_patterns":  ignorePatternsDDL,
	"app_settings":     appSettingsDDL,
}

// Secondary indexes, added post-creation and checked against pg_indexes
// before each attempt.
var secondaryIndexes = map[string]string{
	"idx_error_records_ip_ts":         "CREATE INDEX idx_error_records_ip_ts ON error_records (user_ip, timestamp)",
	"idx_error_records_type_ts":       "CREATE INDEX idx_error_records_type_ts ON error_records (error_type, timestamp)",
	"idx_error_records_login_ts":      "CREATE INDEX idx_error_records_login_ts ON error_records (is_login_page, timestamp)",
	"idx_error_records_user_ts":       "CREATE INDEX idx_error_records_user_ts ON error_records (user_id, timestamp)",
	"idx_error_records_type_login_ts": "CREATE INDEX idx_error_records_type_login_ts ON error_records (error_type, is_login_page, timestamp)",
	"idx_ip_user_mappings_last_seen":  "CREATE INDEX idx_ip_user_mappings_last_seen ON ip_user_mappings (last_seen)",
	"idx_ignore_patterns_active":      "CREATE INDEX idx_ignore_patterns_active ON ignore_patterns (is_active, pattern_type)",
}

// EnsureSchema makes sure all expected tables exist, trying strategies in
// order: golang-migrate, direct DDL, and finally a minimal errors table
// without secondary indexes. It is idempotent and safe under concurrent
// invocation: existence is checked before each attempt and "already exists"
// counts as success. The returned report is also retained for diagnostics.
func (s *PostgresStore) EnsureSchema(ctx context.Context) *SchemaReport {
	report := &SchemaReport{StartedAt: time.Now().UTC()}
	defer func() {
		report.FinishedAt = time.Now().UTC()
		s.mu.Lock()
		s.schemaReport = report
		s.mu.Unlock()
	}()

	if s.allTablesExist(ctx) {
		report.Healthy = true
		report.Strategy = ""
		s.ensureIndexes(ctx, report)
		return report
	}

	// Strategy 1: declarative migrations.
	if s.migrationsDir != "" && s.databaseURL != "" {
		err := RunMigrations(s.databaseURL, s.migrationsDir)
		report.record(StrategyMigrate, "", err)
		if err == nil && s.allTablesExist(ctx) {
			report.Strategy = StrategyMigrate
			report.Healthy = true
			s.ensureIndexes(ctx, report)
			return report
		}
		if err != nil {
			slog.Error("schema migration strategy failed", "error", err)
		}
	}

	// Strategy 2: direct DDL per table.
	allOK := true
	for _, table := range expectedTables {
		if s.tableExists(ctx, table) {
			continue
		}
		_, err := s.pool.Exec(ctx, tableDDL[table])
		if err != nil && isAlreadyExists(err) {
			err = nil
		}
		report.record(StrategyDirectDDL, table, err)
		if err != nil {
			slog.Error("direct DDL strategy failed", "table", table, "error", err)
			allOK = false
		}
	}
	if allOK && s.allTablesExist(ctx) {
		report.Strategy = StrategyDirectDDL
		report.Healthy = true
		s.ensureIndexes(ctx, report)
		return report
	}

	// Strategy 3: main table only, secondary indexes skipped entirely.
	if !s.tableExists(ctx, "error_records") {
		_, err := s.pool.Exec(ctx, errorRecordsDDL)
		if err != nil && isAlreadyExists(err) {
			err = nil
		}
		report.record(StrategyMinimal, "error_records", err)
		if err == nil {
			report.Strategy = StrategyMinimal
			report.Degraded = true
		} else {
			slog.Error("minimal schema strategy failed", "error", err)
		}
	}

	report.Healthy = s.allTablesExist(ctx)
	report.Degraded = report.Degraded || !report.Healthy
	return report
}

// ensureIndexes adds each secondary index if the catalog does not already
// list it. Failures are recorded but never fatal.
func (s *PostgresStore) ensureIndexes(ctx context.Context, report *SchemaReport) {
	for name, ddl := range secondaryIndexes {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE schemaname = current_schema() AND indexname = $1)`,
			name).Scan(&exists)
		if err != nil || exists {
			continue
		}
		if _, err := s.pool.Exec(ctx, ddl); err != nil && !isAlreadyExists(err) {
			report.record(StrategyDirectDDL, "index:"+name, err)
			slog.Warn("index creation failed", "index", name, "error", err)
		}
	}
}

// TableStatus re-derives the state of every expected table from the catalog:
// existence, row count, and column count. It never trusts a cached flag.
func (s *PostgresStore) TableStatus(ctx context.Context) ([]TableInfo, error) {
	infos := make([]TableInfo, 0, len(expectedTables))
	for _, table := range expectedTables {
		info := TableInfo{Name: table, Exists: s.tableExists(ctx, table)}
		if info.Exists {
			var cols int
			err := s.pool.QueryRow(ctx,
				`SELECT count(*) FROM information_schema.columns
				 WHERE table_schema = current_schema() AND table_name = $1`, table).Scan(&cols)
			if err != nil {
				return nil, fmt.Errorf("count columns for %s: %w", table, err)
			}
			info.Columns = cols

			var rows int64
			if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM "+table).Scan(&rows); err != nil {
				return nil, fmt.Errorf("count rows for %s: %w", table, err)
			}
			info.RowCount = rows
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// LastSchemaReport returns the report from the most recent EnsureSchema run,
// or nil if none has run.
func (s *PostgresStore) LastSchemaReport() *SchemaReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemaReport
}

func (s *PostgresStore) tableExists(ctx context.Context, table string) bool {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables
		 WHERE table_schema = current_schema() AND table_name = $1)`, table).Scan(&exists)
	return err == nil && exists
}

func (s *PostgresStore) allTablesExist(ctx context.Context) bool {
	for _, table := range expectedTables {
		if !s.tableExists(ctx, table) {
			return false
		}
	}
	return true
}

// isAlreadyExists treats duplicate table/index errors as success so racing
// creators do not fail each other.
func isAlreadyExists(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "42P07")
}
