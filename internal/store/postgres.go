package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/errsink/errsink/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool          *pgxpool.Pool
	databaseURL   string
	migrationsDir string

	mu           sync.Mutex
	schemaReport *SchemaReport
}

// NewPostgresStore creates a new PostgresStore. databaseURL and migrationsDir
// are used by the migrate strategy of EnsureSchema; they may be empty when
// migrations are managed externally (as in most tests).
func NewPostgresStore(pool *pgxpool.Pool, databaseURL, migrationsDir string) *PostgresStore {
	return &PostgresStore{pool: pool, databaseURL: databaseURL, migrationsDir: migrationsDir}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const errorColumns = `id, timestamp, error_type, error_message, error_source, error_line, error_column,
	stack_trace, user_agent, page_url, user_ip, user_id, associated_user_id, session_id, is_login_page, additional_data`

func scanError(row pgx.Row) (*models.ErrorRecord, error) {
	var rec models.ErrorRecord
	var source, stack, agent, pageURL, ip, session *string
	var additional []byte
	err := row.Scan(&rec.ID, &rec.Timestamp, &rec.ErrorType, &rec.ErrorMessage, &source,
		&rec.ErrorLine, &rec.ErrorColumn, &stack, &agent, &pageURL, &ip,
		&rec.UserID, &rec.AssociatedUserID, &session, &rec.IsLoginPage, &additional)
	if err != nil {
		return nil, err
	}
	rec.ErrorSource = deref(source)
	rec.StackTrace = deref(stack)
	rec.UserAgent = deref(agent)
	rec.PageURL = deref(pageURL)
	rec.UserIP = deref(ip)
	rec.SessionID = deref(session)
	if len(additional) > 0 {
		// Corrupt additional_data must not break listing.
		_ = json.Unmarshal(additional, &rec.AdditionalData)
	}
	return &rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Error records ---

// InsertError persists a record. The timestamp is always server-clock; the
// assigned id and timestamp are written back into rec.
func (s *PostgresStore) InsertError(ctx context.Context, rec *models.ErrorRecord) error {
	if rec.ErrorType == "" || rec.ErrorMessage == "" {
		return fmt.Errorf("insert error: error_type and error_message are required")
	}

	var additional []byte
	if rec.AdditionalData != nil {
		b, err := json.Marshal(rec.AdditionalData)
		if err != nil {
			return fmt.Errorf("marshal additional_data: %w", err)
		}
		additional = b
	}

	err := s.pool.QueryRow(ctx,
		`INSERT INTO error_records
		 (timestamp, error_type, error_message, error_source, error_line, error_column,
		  stack_trace, user_agent, page_url, user_ip, user_id, associated_user_id,
		  session_id, is_login_page, additional_data)
		 VALUES (NOW(), $1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''),
		         NULLIF($8, ''), NULLIF($9, ''), $10, $11, NULLIF($12, ''), $13, $14)
		 RETURNING id, timestamp`,
		rec.ErrorType, rec.ErrorMessage, rec.ErrorSource, rec.ErrorLine, rec.ErrorColumn,
		rec.StackTrace, rec.UserAgent, rec.PageURL, rec.UserIP, rec.UserID,
		rec.AssociatedUserID, rec.SessionID, rec.IsLoginPage, additional,
	).Scan(&rec.ID, &rec.Timestamp)
	if err != nil {
		return fmt.Errorf("insert error record: %w", err)
	}
	return nil
}

var allowedOrderBy = map[string]bool{
	"id": true, "timestamp": true, "error_type": true, "error_source": true, "user_ip": true,
}

// GetErrors lists records matching filter along with the total match count.
// The page size is capped at MaxErrorPageSize regardless of filter.Limit.
func (s *PostgresStore) GetErrors(ctx context.Context, filter ErrorFilter) ([]*models.ErrorRecord, int64, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argIdx := 1

	if filter.ErrorType != "" {
		conditions = append(conditions, fmt.Sprintf("error_type = $%d", argIdx))
		args = append(args, filter.ErrorType)
		argIdx++
	}
	if filter.IsLoginPage != nil {
		conditions = append(conditions, fmt.Sprintf("is_login_page = $%d", argIdx))
		args = append(args, *filter.IsLoginPage)
		argIdx++
	}
	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.AssociatedUserID != nil {
		conditions = append(conditions, fmt.Sprintf("associated_user_id = $%d", argIdx))
		args = append(args, *filter.AssociatedUserID)
		argIdx++
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(error_message ILIKE $%d OR error_source ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		argIdx++
	}
	if !filter.DateFrom.IsZero() {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, filter.DateFrom)
		argIdx++
	}
	if !filter.DateTo.IsZero() {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, filter.DateTo)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM error_records WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count error records: %w", err)
	}

	orderBy := filter.OrderBy
	if !allowedOrderBy[orderBy] {
		orderBy = "timestamp"
	}
	order := "DESC"
	if strings.EqualFold(filter.Order, "ASC") {
		order = "ASC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxErrorPageSize {
		limit = MaxErrorPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		"SELECT %s FROM error_records WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		errorColumns, where, orderBy, order, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list error records: %w", err)
	}
	defer rows.Close()

	var records []*models.ErrorRecord
	for rows.Next() {
		rec, err := scanError(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan error record: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func (s *PostgresStore) GetError(ctx context.Context, id int64) (*models.ErrorRecord, error) {
	rec, err := scanError(s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM error_records WHERE id = $1", errorColumns), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get error record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) DeleteError(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM error_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete error record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ClearErrors(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `TRUNCATE TABLE error_records`); err != nil {
		return fmt.Errorf("clear error records: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateErrorAssociatedUser(ctx context.Context, errorID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE error_records SET associated_user_id = $2 WHERE id = $1`, errorID, userID)
	if err != nil {
		return fmt.Errorf("update associated user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Retention and abuse control ---

// CleanupOlderThan deletes records older than the given number of days and
// returns how many were removed. days <= 0 disables cleanup.
func (s *PostgresStore) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	tag, err := s.pool.Exec(ctx, `DELETE FROM error_records WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// EvictOverLimit deletes the oldest records so at most maxEntries remain.
func (s *PostgresStore) EvictOverLimit(ctx context.Context, maxEntries int) (int64, error) {
	if maxEntries <= 0 {
		return 0, nil
	}
	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM error_records`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count records for eviction: %w", err)
	}
	excess := total - int64(maxEntries)
	if excess <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM error_records WHERE id IN (
		   SELECT id FROM error_records ORDER BY timestamp ASC, id ASC LIMIT $1)`, excess)
	if err != nil {
		return 0, fmt.Errorf("evict oldest records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountRecentByIP counts records from ip within the window, stopping at
// threshold+1 so abusive bursts do not trigger full scans.
func (s *PostgresStore) CountRecentByIP(ctx context.Context, ip string, window time.Duration, threshold int) (int, error) {
	since := time.Now().UTC().Add(-window)
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM (
		   SELECT 1 FROM error_records WHERE user_ip = $1 AND timestamp > $2 LIMIT $3
		 ) recent`, ip, since, threshold+1).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count recent by ip: %w", err)
	}
	return count, nil
}

// --- Aggregates ---

func (s *PostgresStore) GetErrorStats(ctx context.Context) (*models.ErrorStats, error) {
	stats := &models.ErrorStats{}

	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM error_records`).Scan(&stats.Total); err != nil {
		return nil, fmt.Errorf("total count: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT error_type, count(*) AS count FROM error_records
		 GROUP BY error_type ORDER BY count DESC`)
	if err != nil {
		return nil, fmt.Errorf("count by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.ErrorType, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		stats.ByType = append(stats.ByType, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM error_records WHERE timestamp > $1`, since).Scan(&stats.Recent24h); err != nil {
		return nil, fmt.Errorf("24h count: %w", err)
	}

	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM error_records WHERE is_login_page`).Scan(&stats.LoginErrors); err != nil {
		return nil, fmt.Errorf("login error count: %w", err)
	}

	return stats, nil
}

func (s *PostgresStore) GetLoginHistory(ctx context.Context, filter LoginFilter) ([]*models.ErrorRecord, error) {
	conditions := []string{"error_type = ANY($1)"}
	eventTypes := models.LoginEventTypes
	if filter.SuccessOnly {
		eventTypes = []string{models.TypeLoginSuccess}
	} else if filter.FailedOnly {
		eventTypes = failedLoginTypes()
	}
	args := []any{eventTypes}
	argIdx := 2

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}
	if filter.IPAddress != "" {
		conditions = append(conditions, fmt.Sprintf("user_ip = $%d", argIdx))
		args = append(args, filter.IPAddress)
		argIdx++
	}
	if !filter.DateFrom.IsZero() {
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", argIdx))
		args = append(args, filter.DateFrom)
		argIdx++
	}
	if !filter.DateTo.IsZero() {
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", argIdx))
		args = append(args, filter.DateTo)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > MaxLoginPageSize {
		limit = MaxLoginPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(
		"SELECT %s FROM error_records WHERE %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d",
		errorColumns, strings.Join(conditions, " AND "), argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list login history: %w", err)
	}
	defer rows.Close()

	var records []*models.ErrorRecord
	for rows.Next() {
		rec, err := scanError(rows)
		if err != nil {
			return nil, fmt.Errorf("scan login record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetLoginStats(ctx context.Context, from, to time.Time) (*models.LoginStats, error) {
	stats := &models.LoginStats{}

	dateCond, dateArgs := dateRangeCondition(from, to, 2)

	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM error_records WHERE error_type = $1`+dateCond,
		append([]any{models.TypeLoginSuccess}, dateArgs...)...,
	).Scan(&stats.SuccessfulLogins)
	if err != nil {
		return nil, fmt.Errorf("count successful logins: %w", err)
	}

	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM error_records WHERE error_type = ANY($1)`+dateCond,
		append([]any{failedLoginTypes()}, dateArgs...)...,
	).Scan(&stats.FailedLogins)
	if err != nil {
		return nil, fmt.Errorf("count failed logins: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT error_type, count(*) AS count FROM error_records
		 WHERE error_type = ANY($1)`+dateCond+` GROUP BY error_type`,
		append([]any{failedLoginTypes()}, dateArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("failed logins by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tc models.TypeCount
		if err := rows.Scan(&tc.ErrorType, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan failed-by-type: %w", err)
		}
		stats.FailedByType = append(stats.FailedByType, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ipRows, err := s.pool.Query(ctx,
		`SELECT user_ip, count(*) AS attempts FROM error_records
		 WHERE error_type = ANY($1) AND user_ip IS NOT NULL`+dateCond+`
		 GROUP BY user_ip ORDER BY attempts DESC LIMIT 10`,
		append([]any{failedLoginTypes()}, dateArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("top failed ips: %w", err)
	}
	defer ipRows.Close()
	for ipRows.Next() {
		var ia models.IPAttempts
		if err := ipRows.Scan(&ia.UserIP, &ia.Attempts); err != nil {
			return nil, fmt.Errorf("scan top failed ip: %w", err)
		}
		stats.TopFailedIPs = append(stats.TopFailedIPs, ia)
	}
	if err := ipRows.Err(); err != nil {
		return nil, err
	}

	userRows, err := s.pool.Query(ctx,
		`SELECT user_id, count(*) AS attempts FROM error_records
		 WHERE error_type = $1 AND user_id IS NOT NULL`+dateCond+`
		 GROUP BY user_id ORDER BY attempts DESC LIMIT 10`,
		append([]any{models.TypeLoginFailedValidUser}, dateArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("most targeted users: %w", err)
	}
	defer userRows.Close()
	for userRows.Next() {
		var ua models.UserAttempts
		if err := userRows.Scan(&ua.UserID, &ua.Attempts); err != nil {
			return nil, fmt.Errorf("scan targeted user: %w", err)
		}
		stats.MostTargetedUsers = append(stats.MostTargetedUsers, ua)
	}
	return stats, userRows.Err()
}

func failedLoginTypes() []string {
	return []string{
		models.TypeLoginFailedValidUser,
		models.TypeLoginFailedInvalidUser,
		models.TypeLoginFailedEmpty,
	}
}

// dateRangeCondition builds optional timestamp bounds starting at the given
// placeholder index.
func dateRangeCondition(from, to time.Time, startIdx int) (string, []any) {
	var cond strings.Builder
	var args []any
	idx := startIdx
	if !from.IsZero() {
		fmt.Fprintf(&cond, " AND timestamp >= $%d", idx)
		args = append(args, from)
		idx++
	}
	if !to.IsZero() {
		fmt.Fprintf(&cond, " AND timestamp <= $%d", idx)
		args = append(args, to)
	}
	return cond.String(), args
}

// --- IP to user mappings ---

// UpsertIPMapping records a login from ip by userID. Existing rows get their
// login_count incremented and last_seen refreshed.
func (s *PostgresStore) UpsertIPMapping(ctx context.Context, ip string, userID int64) error {
	if ip == "" || userID == 0 {
		return fmt.Errorf("upsert ip mapping: ip and user id are required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ip_user_mappings (ip_address, user_id, first_seen, last_seen, login_count)
		 VALUES ($1, $2, NOW(), NOW(), 1)
		 ON CONFLICT (ip_address, user_id) DO UPDATE SET
		   login_count = ip_user_mappings.login_count + 1,
		   last_seen = NOW()`, ip, userID)
	if err != nil {
		return fmt.Errorf("upsert ip mapping: %w", err)
	}
	return nil
}

// GetAssociatedUserByIP returns the most recently seen user for ip within the
// window, or nil when no mapping qualifies.
func (s *PostgresStore) GetAssociatedUserByIP(ctx context.Context, ip string, window time.Duration) (*int64, error) {
	if ip == "" {
		return nil, nil
	}
	since := time.Now().UTC().Add(-window)
	var userID int64
	err := s.pool.QueryRow(ctx,
		`SELECT user_id FROM ip_user_mappings
		 WHERE ip_address = $1 AND last_seen > $2
		 ORDER BY last_seen DESC LIMIT 1`, ip, since).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get associated user by ip: %w", err)
	}
	return &userID, nil
}

func (s *PostgresStore) GetUsersByIP(ctx context.Context, ip string) ([]*models.IPUserMapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ip_address, user_id, first_seen, last_seen, login_count
		 FROM ip_user_mappings WHERE ip_address = $1 ORDER BY last_seen DESC`, ip)
	if err != nil {
		return nil, fmt.Errorf("get users by ip: %w", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

func (s *PostgresStore) GetIPsByUser(ctx context.Context, userID int64) ([]*models.IPUserMapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, ip_address, user_id, first_seen, last_seen, login_count
		 FROM ip_user_mappings WHERE user_id = $1 ORDER BY last_seen DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("get ips by user: %w", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

func scanMappings(rows pgx.Rows) ([]*models.IPUserMapping, error) {
	var mappings []*models.IPUserMapping
	for rows.Next() {
		var m models.IPUserMapping
		if err := rows.Scan(&m.ID, &m.IPAddress, &m.UserID, &m.FirstSeen, &m.LastSeen, &m.LoginCount); err != nil {
			return nil, fmt.Errorf("scan ip mapping: %w", err)
		}
		mappings = append(mappings, &m)
	}
	return mappings, rows.Err()
}

// --- Ignore patterns ---

func (s *PostgresStore) ListIgnorePatterns(ctx context.Context, activeOnly bool) ([]*models.IgnorePattern, error) {
	query := `SELECT id, pattern_type, pattern_value, is_active, notes, created_at, updated_at, ignore_count, last_ignored
	          FROM ignore_patterns`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY pattern_type ASC, id DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list ignore patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*models.IgnorePattern
	for rows.Next() {
		var p models.IgnorePattern
		if err := rows.Scan(&p.ID, &p.PatternType, &p.PatternValue, &p.IsActive, &p.Notes,
			&p.CreatedAt, &p.UpdatedAt, &p.IgnoreCount, &p.LastIgnored); err != nil {
			return nil, fmt.Errorf("scan ignore pattern: %w", err)
		}
		patterns = append(patterns, &p)
	}
	return patterns, rows.Err()
}

func (s *PostgresStore) AddIgnorePattern(ctx context.Context, p *models.IgnorePattern) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO ignore_patterns (pattern_type, pattern_value, is_active, notes, created_at, updated_at)
		 VALUES ($1, $2, TRUE, $3, NOW(), NOW())
		 RETURNING id, is_active, created_at, updated_at`,
		p.PatternType, p.PatternValue, p.Notes,
	).Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("add ignore pattern: %w", err)
	}
	return nil
}

// ToggleIgnorePattern flips is_active and returns the new state.
func (s *PostgresStore) ToggleIgnorePattern(ctx context.Context, id int64) (bool, error) {
	var active bool
	err := s.pool.QueryRow(ctx,
		`UPDATE ignore_patterns SET is_active = NOT is_active, updated_at = NOW()
		 WHERE id = $1 RETURNING is_active`, id).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle ignore pattern: %w", err)
	}
	return active, nil
}

func (s *PostgresStore) DeleteIgnorePattern(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ignore_patterns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete ignore pattern: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordIgnoreHit bumps the pattern's suppression counters.
func (s *PostgresStore) RecordIgnoreHit(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ignore_patterns SET ignore_count = ignore_count + 1, last_ignored = NOW()
		 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("record ignore hit: %w", err)
	}
	return nil
}

// --- Settings ---

const settingsKey = "monitor_settings"

// LoadSettings returns the saved settings clamped into range, or defaults
// when none have been saved yet.
func (s *PostgresStore) LoadSettings(ctx context.Context) (models.Settings, error) {
	settings := models.DefaultSettings()
	var raw string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM app_settings WHERE key = $1`, settingsKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("load settings: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		return models.DefaultSettings(), fmt.Errorf("decode settings: %w", err)
	}
	settings.Clamp()
	return settings, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, settings models.Settings) error {
	settings.Clamp()
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO app_settings (key, value, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		settingsKey, string(raw))
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// escapeLike escapes LIKE metacharacters in user-supplied search terms.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
