package models

import "time"

// IPUserMapping associates a client IP with an authenticated user. Rows are
// unique on (ip_address, user_id); repeat logins bump login_count and
// last_seen instead of inserting duplicates.
type IPUserMapping struct {
	ID         int64     `db:"id"          json:"id"`
	IPAddress  string    `db:"ip_address"  json:"ip_address"`
	UserID     int64     `db:"user_id"     json:"user_id"`
	FirstSeen  time.Time `db:"first_seen"  json:"first_seen"`
	LastSeen   time.Time `db:"last_seen"   json:"last_seen"`
	LoginCount int       `db:"login_count" json:"login_count"`
}
