package models

// TypeCount is one row of a count-by-type aggregate.
type TypeCount struct {
	ErrorType string `db:"error_type" json:"error_type"`
	Count     int64  `db:"count"      json:"count"`
}

// ErrorStats is the dashboard aggregate over the errors table.
type ErrorStats struct {
	Total       int64       `json:"total"`
	ByType      []TypeCount `json:"by_type"`
	Recent24h   int64       `json:"recent_24h"`
	LoginErrors int64       `json:"login_errors"`
}

// IPAttempts is one row of the top-failed-IPs aggregate.
type IPAttempts struct {
	UserIP   string `db:"user_ip"  json:"user_ip"`
	Attempts int64  `db:"attempts" json:"attempts"`
}

// UserAttempts is one row of the most-targeted-users aggregate.
type UserAttempts struct {
	UserID   int64 `db:"user_id"  json:"user_id"`
	Attempts int64 `db:"attempts" json:"attempts"`
}

// LoginStats aggregates login events, optionally bounded by a date range.
// It joins multiple aggregates and is therefore cached longer than ErrorStats.
type LoginStats struct {
	SuccessfulLogins  int64          `json:"successful_logins"`
	FailedLogins      int64          `json:"failed_logins"`
	FailedByType      []TypeCount    `json:"failed_by_type"`
	TopFailedIPs      []IPAttempts   `json:"top_failed_ips"`
	MostTargetedUsers []UserAttempts `json:"most_targeted_users"`
}
