package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smixab/ihub-bot/internal/models"
)

// messageContentLimit caps stored message text; userAgentLimit caps the
// stored User-Agent header.
const (
	messageContentLimit = 1000
	userAgentLimit      = 500
	activityPreviewLen  = 100
)

// ActivityStore is the SQL layer for per-IP sessions, message logs and the
// moderation action audit trail.
type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

// GetSession returns the activity row for ip, or nil when the IP has never
// been seen.
func (s *ActivityStore) GetSession(ip string) (*models.UserActivity, error) {
	row := s.db.QueryRow(
		`SELECT ip_address, session_start, messages_sent, flagged_messages,
		        warnings_issued, last_activity, user_agent, is_blocked,
		        block_reason, block_expires
		 FROM user_sessions WHERE ip_address = ?`, ip)

	var (
		a              models.UserActivity
		start, last    string
		blocked        int
		expires        string
	)
	err := row.Scan(&a.IPAddress, &start, &a.MessagesSent, &a.FlaggedMessages,
		&a.WarningsIssued, &last, &a.UserAgent, &blocked, &a.BlockReason, &expires)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session for %s: %w", ip, err)
	}

	a.SessionStart = parseTime(start)
	a.LastActivity = parseTime(last)
	a.IsBlocked = blocked != 0
	if expires != "" {
		t := parseTime(expires)
		a.BlockExpires = &t
	}
	return &a, nil
}

// TouchSession creates or updates the activity row for ip, bumping the
// message counter and last-activity timestamp.
func (s *ActivityStore) TouchSession(ip, userAgent string, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO user_sessions (ip_address, session_start, messages_sent, last_activity, user_agent)
		 VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT(ip_address) DO UPDATE SET
		   messages_sent = messages_sent + 1,
		   last_activity = excluded.last_activity,
		   user_agent = excluded.user_agent`,
		ip, formatTime(now), formatTime(now), truncate(userAgent, userAgentLimit))
	if err != nil {
		return fmt.Errorf("failed to update session for %s: %w", ip, err)
	}
	return nil
}

// LogMessage appends one message-log row.
func (s *ActivityStore) LogMessage(ip, message string, flagged bool, reasons []string, userAgent string, now time.Time) error {
	reasonsJSON, err := json.Marshal(reasons)
	if err != nil {
		return err
	}
	if reasons == nil {
		reasonsJSON = []byte("[]")
	}
	_, err = s.db.Exec(
		`INSERT INTO message_logs (ip_address, timestamp, message_content, is_flagged, flag_reasons, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ip, formatTime(now), truncate(message, messageContentLimit),
		boolToInt(flagged), string(reasonsJSON), truncate(userAgent, userAgentLimit))
	if err != nil {
		return fmt.Errorf("failed to log message for %s: %w", ip, err)
	}
	return nil
}

// CountMessagesSince counts logged messages for ip with timestamp > since.
func (s *ActivityStore) CountMessagesSince(ip string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM message_logs WHERE ip_address = ? AND timestamp > ?`,
		ip, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages for %s: %w", ip, err)
	}
	return n, nil
}

// IncrementFlagged bumps the flagged counter for ip and returns the new count.
func (s *ActivityStore) IncrementFlagged(ip string) (int, error) {
	_, err := s.db.Exec(
		`UPDATE user_sessions SET flagged_messages = flagged_messages + 1 WHERE ip_address = ?`, ip)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRow(
		`SELECT flagged_messages FROM user_sessions WHERE ip_address = ?`, ip).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// IncrementWarnings bumps the warnings counter for ip.
func (s *ActivityStore) IncrementWarnings(ip string) error {
	_, err := s.db.Exec(
		`UPDATE user_sessions SET warnings_issued = warnings_issued + 1 WHERE ip_address = ?`, ip)
	return err
}

// SetBlock marks ip blocked until expires and records the action. An IP
// never seen before gets a session row so manual admin blocks always stick.
func (s *ActivityStore) SetBlock(ip, reason string, expires time.Time, adminID string, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO user_sessions (ip_address, session_start, last_activity, is_blocked, block_reason, block_expires)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT(ip_address) DO UPDATE SET
		   is_blocked = 1,
		   block_reason = excluded.block_reason,
		   block_expires = excluded.block_expires`,
		ip, formatTime(now), formatTime(now), reason, formatTime(expires))
	if err != nil {
		return fmt.Errorf("failed to block %s: %w", ip, err)
	}
	return s.recordAction(ip, "block", reason, adminID, formatTime(expires), now)
}

// ClearBlock removes the block for ip and records the action. Clearing an
// unblocked or unknown IP is a no-op.
func (s *ActivityStore) ClearBlock(ip, reason, adminID string, now time.Time) error {
	res, err := s.db.Exec(
		`UPDATE user_sessions SET is_blocked = 0, block_reason = '', block_expires = ''
		 WHERE ip_address = ? AND is_blocked = 1`, ip)
	if err != nil {
		return fmt.Errorf("failed to unblock %s: %w", ip, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}
	return s.recordAction(ip, "unblock", reason, adminID, "", now)
}

func (s *ActivityStore) recordAction(ip, actionType, reason, adminID, expiresAt string, now time.Time) error {
	_, err := s.db.Exec(
		`INSERT INTO moderation_actions (ip_address, action_type, reason, timestamp, admin_id, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ip, actionType, reason, formatTime(now), adminID, expiresAt)
	return err
}

// Stats aggregates overall usage for the admin dashboard.
func (s *ActivityStore) Stats() (*models.OverallStats, error) {
	var st models.OverallStats
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM user_sessions`).Scan(&st.TotalUsers); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM message_logs`).Scan(&st.TotalMessages); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM message_logs WHERE is_flagged = 1`).Scan(&st.FlaggedMessages); err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM user_sessions WHERE is_blocked = 1`).Scan(&st.BlockedUsers); err != nil {
		return nil, err
	}
	if st.TotalMessages > 0 {
		st.FlaggedPercentage = float64(st.FlaggedMessages) / float64(st.TotalMessages) * 100
	}
	return &st, nil
}

// UserStats returns the per-IP detail view, or ErrNotFound.
func (s *ActivityStore) UserStats(ip string) (*models.UserStats, error) {
	a, err := s.GetSession(ip)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}

	var total, flagged int
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(is_flagged), 0) FROM message_logs WHERE ip_address = ?`,
		ip).Scan(&total, &flagged)
	if err != nil {
		return nil, err
	}

	return &models.UserStats{
		IPAddress:       a.IPAddress,
		SessionStart:    a.SessionStart,
		TotalMessages:   total,
		FlaggedMessages: flagged,
		WarningsIssued:  a.WarningsIssued,
		IsBlocked:       a.IsBlocked,
		BlockReason:     a.BlockReason,
		BlockExpires:    a.BlockExpires,
		LastActivity:    a.LastActivity,
	}, nil
}

// RecentActivity returns the newest message-log rows since the given time,
// newest first, with message text truncated to a preview.
func (s *ActivityStore) RecentActivity(since time.Time, limit int) ([]models.ActivityEntry, error) {
	rows, err := s.db.Query(
		`SELECT ip_address, timestamp, message_content, is_flagged, flag_reasons
		 FROM message_logs
		 WHERE timestamp > ?
		 ORDER BY timestamp DESC
		 LIMIT ?`, formatTime(since), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ActivityEntry
	for rows.Next() {
		var (
			e           models.ActivityEntry
			ts, reasons string
			flagged     int
		)
		if err := rows.Scan(&e.IPAddress, &ts, &e.Message, &flagged, &reasons); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(ts)
		e.IsFlagged = flagged != 0
		if len(e.Message) > activityPreviewLen {
			e.Message = e.Message[:activityPreviewLen] + "..."
		}
		if reasons != "" {
			_ = json.Unmarshal([]byte(reasons), &e.FlagReasons)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// timeLayout keeps a fixed-width fraction so stored timestamps order
// lexicographically in SQL comparisons.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
