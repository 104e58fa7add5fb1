package store

import (
	"context"
	"errors"
	"time"

	"github.com/errsink/errsink/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Hard upper bounds on requested page sizes. Callers can ask for less but
// never more, regardless of the limit they supply.
const (
	MaxErrorPageSize = 1000
	MaxLoginPageSize = 500
)

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	// Error records.
	InsertError(ctx context.Context, rec *models.ErrorRecord) error
	GetErrors(ctx context.Context, filter ErrorFilter) ([]*models.ErrorRecord, int64, error)
	GetError(ctx context.Context, id int64) (*models.ErrorRecord, error)
	DeleteError(ctx context.Context, id int64) error
	ClearErrors(ctx context.Context) error
	UpdateErrorAssociatedUser(ctx context.Context, errorID, userID int64) error

	// Retention and abuse control.
	CleanupOlderThan(ctx context.Context, days int) (int64, error)
	EvictOverLimit(ctx context.Context, maxEntries int) (int64, error)
	CountRecentByIP(ctx context.Context, ip string, window time.Duration, threshold int) (int, error)

	// Aggregates.
	GetErrorStats(ctx context.Context) (*models.ErrorStats, error)
	GetLoginHistory(ctx context.Context, filter LoginFilter) ([]*models.ErrorRecord, error)
	GetLoginStats(ctx context.Context, from, to time.Time) (*models.LoginStats, error)

	// IP to user mappings.
	UpsertIPMapping(ctx context.Context, ip string, userID int64) error
	GetAssociatedUserByIP(ctx context.Context, ip string, window time.Duration) (*int64, error)
	GetUsersByIP(ctx context.Context, ip string) ([]*models.IPUserMapping, error)
	GetIPsByUser(ctx context.Context, userID int64) ([]*models.IPUserMapping, error)

	// Ignore patterns.
	ListIgnorePatterns(ctx context.Context, activeOnly bool) ([]*models.IgnorePattern, error)
	AddIgnorePattern(ctx context.Context, p *models.IgnorePattern) error
	ToggleIgnorePattern(ctx context.Context, id int64) (bool, error)
	DeleteIgnorePattern(ctx context.Context, id int64) error
	RecordIgnoreHit(ctx context.Context, id int64) error

	// Settings.
	LoadSettings(ctx context.Context) (models.Settings, error)
	SaveSettings(ctx context.Context, s models.Settings) error

	// Schema lifecycle.
	EnsureSchema(ctx context.Context) *SchemaReport
	TableStatus(ctx context.Context) ([]TableInfo, error)
	LastSchemaReport() *SchemaReport
}

// ErrorFilter selects and pages error records.
type ErrorFilter struct {
	ErrorType        string
	IsLoginPage      *bool
	UserID           *int64
	AssociatedUserID *int64
	Search           string
	DateFrom         time.Time
	DateTo           time.Time
	OrderBy          string
	Order            string
	Limit            int
	Offset           int
}

// LoginFilter selects login event records.
type LoginFilter struct {
	SuccessOnly bool
	FailedOnly  bool
	UserID      *int64
	IPAddress   string
	DateFrom    time.Time
	DateTo      time.Time
	Limit       int
	Offset      int
}

// TableInfo describes one expected table for the diagnostics surface.
type TableInfo struct {
	Name     string `json:"name"`
	Exists   bool   `json:"exists"`
	RowCount int64  `json:"row_count"`
	Columns  int    `json:"columns"`
}
