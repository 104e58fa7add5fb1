package models

import "time"

// Ignore pattern types.
const (
	PatternExactMessage    = "exact_message"
	PatternMessageContains = "message_contains"
	PatternExactSource     = "exact_source"
	PatternSourceContains  = "source_contains"
	PatternType            = "type"
	PatternRegex           = "regex"
)

// ValidPatternTypes lists the accepted pattern_type values.
var ValidPatternTypes = []string{
	PatternExactMessage,
	PatternMessageContains,
	PatternExactSource,
	PatternSourceContains,
	PatternType,
	PatternRegex,
}

// IgnorePattern is an admin-defined suppression rule evaluated against every
// incoming record before persistence. Regex patterns must pass the safety
// validator before being stored.
type IgnorePattern struct {
	ID           int64      `db:"id"            json:"id"`
	PatternType  string     `db:"pattern_type"  json:"pattern_type"`
	PatternValue string     `db:"pattern_value" json:"pattern_value"`
	IsActive     bool       `db:"is_active"     json:"is_active"`
	Notes        string     `db:"notes"         json:"notes,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
	IgnoreCount  int64      `db:"ignore_count"  json:"ignore_count"`
	LastIgnored  *time.Time `db:"last_ignored"  json:"last_ignored,omitempty"`
}
