package models

// Settings bounds and defaults.
const (
	LoginTimeoutMin     = 5
	LoginTimeoutMax     = 60
	LoginTimeoutDefault = 10

	MaxLogEntriesMin     = 100
	MaxLogEntriesMax     = 10000
	MaxLogEntriesDefault = 1000

	CleanupDaysMin     = 0
	CleanupDaysMax     = 365
	CleanupDaysDefault = 30
)

// Settings is the process-wide monitoring configuration. It is loaded at
// request start and clamped on save; a zero AutoCleanupDays disables the
// age-based cleanup job.
type Settings struct {
	EnableLoginMonitoring bool `json:"enable_login_monitoring"`
	EnableSiteMonitoring  bool `json:"enable_site_monitoring"`
	LoginTimeoutSeconds   int  `json:"login_timeout_seconds"`
	MaxLogEntries         int  `json:"max_log_entries"`
	AutoCleanupDays       int  `json:"auto_cleanup_days"`
}

// DefaultSettings returns the settings applied before any admin has saved.
func DefaultSettings() Settings {
	return Settings{
		EnableLoginMonitoring: true,
		EnableSiteMonitoring:  true,
		LoginTimeoutSeconds:   LoginTimeoutDefault,
		MaxLogEntries:         MaxLogEntriesDefault,
		AutoCleanupDays:       CleanupDaysDefault,
	}
}

// Clamp forces every numeric field into its documented range.
func (s *Settings) Clamp() {
	s.LoginTimeoutSeconds = clampInt(s.LoginTimeoutSeconds, LoginTimeoutMin, LoginTimeoutMax)
	s.MaxLogEntries = clampInt(s.MaxLogEntries, MaxLogEntriesMin, MaxLogEntriesMax)
	s.AutoCleanupDays = clampInt(s.AutoCleanupDays, CleanupDaysMin, CleanupDaysMax)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
