package models

import "time"

// UserActivity tracks one client IP: message counters, flags and block state.
type UserActivity struct {
	IPAddress       string     `json:"ip_address"`
	SessionStart    time.Time  `json:"session_start"`
	MessagesSent    int        `json:"messages_sent"`
	FlaggedMessages int        `json:"flagged_messages"`
	WarningsIssued  int        `json:"warnings_issued"`
	LastActivity    time.Time  `json:"last_activity"`
	UserAgent       string     `json:"user_agent,omitempty"`
	IsBlocked       bool       `json:"is_blocked"`
	BlockReason     string     `json:"block_reason,omitempty"`
	BlockExpires    *time.Time `json:"block_expires,omitempty"`
}

// BlockEntry is a temporary ban for an IP address.
type BlockEntry struct {
	IPAddress string    `json:"ip_address"`
	Reason    string    `json:"reason"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ModerationConfig holds the process-wide moderation thresholds.
// It is read on every check and mutable through the admin API.
type ModerationConfig struct {
	MaxMessagesPerHour     int `json:"max_messages_per_hour"`
	AutoBlockThreshold     int `json:"auto_block_threshold"`
	WarningThreshold       int `json:"warning_threshold"`
	BlockDurationHours     int `json:"block_duration_hours"`
	RateLimitWindowMinutes int `json:"rate_limit_window_minutes"`
}

// BadWordList is the persisted bad-word/pattern configuration.
type BadWordList struct {
	Words    []string `json:"words"`
	Patterns []string `json:"patterns"`
}

// DenyReason classifies why a message was denied.
type DenyReason string

const (
	DenyBlocked     DenyReason = "user_blocked"
	DenyRateLimited DenyReason = "rate_limited"
)

// CheckResult is the outcome of a moderation check for one message.
type CheckResult struct {
	Allowed    bool
	Warn       bool
	Flagged    bool
	Reason     DenyReason
	Message    string
	RetryAfter int // seconds, only set for rate-limit denials
	Flags      []string
}

// OverallStats summarizes moderation activity for the admin dashboard.
type OverallStats struct {
	TotalUsers        int     `json:"total_users"`
	TotalMessages     int     `json:"total_messages"`
	FlaggedMessages   int     `json:"flagged_messages"`
	BlockedUsers      int     `json:"blocked_users"`
	FlaggedPercentage float64 `json:"flagged_percentage"`
}

// UserStats is the per-IP detail view for the admin dashboard.
type UserStats struct {
	IPAddress       string     `json:"ip_address"`
	SessionStart    time.Time  `json:"session_start"`
	TotalMessages   int        `json:"total_messages"`
	FlaggedMessages int        `json:"flagged_messages"`
	WarningsIssued  int        `json:"warnings_issued"`
	IsBlocked       bool       `json:"is_blocked"`
	BlockReason     string     `json:"block_reason,omitempty"`
	BlockExpires    *time.Time `json:"block_expires,omitempty"`
	LastActivity    time.Time  `json:"last_activity"`
}

// ActivityEntry is one recent message in the admin activity feed.
// Message is truncated to a short preview.
type ActivityEntry struct {
	IPAddress   string    `json:"ip_address"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message"`
	IsFlagged   bool      `json:"is_flagged"`
	FlagReasons []string  `json:"flag_reasons"`
}
