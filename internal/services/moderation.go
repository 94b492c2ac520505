package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/smixab/ihub-bot/internal/models"
)

// Default thresholds applied when no config file exists yet.
var defaultModerationConfig = models.ModerationConfig{
	MaxMessagesPerHour:     60,
	AutoBlockThreshold:     5,
	WarningThreshold:       2,
	BlockDurationHours:     24,
	RateLimitWindowMinutes: 60,
}

// defaultBadWords seeds the banned-word list on first run.
var defaultBadWords = []string{
	// Profanity
	"fuck", "shit", "damn", "bitch", "asshole", "bastard",
	// Hate speech indicators
	"hate", "stupid", "idiot", "retard", "kill yourself",
	// Spam indicators
	"buy now", "click here", "free money", "viagra",
	// Inappropriate requests
	"hack", "break", "destroy", "damage", "illegal",
}

var defaultBadPatterns = []string{
	`\b(fuck|shit|damn)\w*`,
	`kill\s+yourself`,
	`hack\s+into`,
}

const (
	maxMessageLength = 500
	capsMinLength    = 10
	capsRatioLimit   = 0.7
	repeatRunLimit   = 6
)

// Guard decides whether a chat message is allowed, warned or denied for a
// given client IP, and maintains the per-IP counters and block list.
// Activity is persisted through the ActivityStore; thresholds and the
// bad-word list live behind one mutex and are persisted as JSON documents.
type Guard struct {
	store *ActivityStore

	mu         sync.RWMutex
	cfg        models.ModerationConfig
	words      []string
	patternSrc []string
	patterns   []*regexp.Regexp

	configPath string
	wordsPath  string

	now func() time.Time // swapped in tests
}

// NewGuard loads (or seeds) the moderation config and bad-word list.
func NewGuard(store *ActivityStore, configPath, wordsPath string) (*Guard, error) {
	g := &Guard{
		store:      store,
		configPath: configPath,
		wordsPath:  wordsPath,
		now:        time.Now,
	}
	if err := g.loadConfig(); err != nil {
		return nil, err
	}
	if err := g.loadBadWords(); err != nil {
		return nil, err
	}
	return g, nil
}

// Check runs the full moderation pipeline for one incoming message:
// block list, sliding-window rate limit, content evaluation, flag counters.
// Deterministic given stored state and config; no external calls.
func (g *Guard) Check(ip, userAgent, message string) (models.CheckResult, error) {
	now := g.now()

	blocked, reason, err := g.checkBlocked(ip, now)
	if err != nil {
		return models.CheckResult{}, err
	}
	if blocked {
		return models.CheckResult{
			Reason:  models.DenyBlocked,
			Message: "Your access has been temporarily restricted: " + reason,
		}, nil
	}

	cfg := g.Config()
	window := time.Duration(cfg.RateLimitWindowMinutes) * time.Minute
	count, err := g.store.CountMessagesSince(ip, now.Add(-window))
	if err != nil {
		return models.CheckResult{}, err
	}
	if count >= cfg.MaxMessagesPerHour {
		blockReason := fmt.Sprintf("Rate limit exceeded: %d messages in the current window", count)
		expires := now.Add(time.Duration(cfg.BlockDurationHours) * time.Hour)
		if err := g.store.SetBlock(ip, blockReason, expires, "system", now); err != nil {
			return models.CheckResult{}, err
		}
		return models.CheckResult{
			Reason:     models.DenyRateLimited,
			Message:    blockReason,
			RetryAfter: int(window.Seconds()),
		}, nil
	}

	flags := g.evaluateContent(message)
	flagged := len(flags) > 0

	if err := g.store.TouchSession(ip, userAgent, now); err != nil {
		return models.CheckResult{}, err
	}
	if err := g.store.LogMessage(ip, message, flagged, flags, userAgent, now); err != nil {
		return models.CheckResult{}, err
	}

	if !flagged {
		return models.CheckResult{Allowed: true}, nil
	}

	flaggedCount, err := g.store.IncrementFlagged(ip)
	if err != nil {
		return models.CheckResult{}, err
	}
	if flaggedCount >= cfg.AutoBlockThreshold {
		blockReason := fmt.Sprintf("Auto-blocked after %d flagged messages", flaggedCount)
		expires := now.Add(time.Duration(cfg.BlockDurationHours) * time.Hour)
		if err := g.store.SetBlock(ip, blockReason, expires, "system", now); err != nil {
			return models.CheckResult{}, err
		}
		return models.CheckResult{
			Flagged: true,
			Reason:  models.DenyBlocked,
			Message: "Your access has been temporarily restricted: " + blockReason,
			Flags:   flags,
		}, nil
	}
	if flaggedCount >= cfg.WarningThreshold {
		if err := g.store.IncrementWarnings(ip); err != nil {
			return models.CheckResult{}, err
		}
		return models.CheckResult{Allowed: true, Warn: true, Flagged: true, Flags: flags}, nil
	}
	return models.CheckResult{Allowed: true, Flagged: true, Flags: flags}, nil
}

// checkBlocked reports whether ip has an active block. An expired block is
// cleared here so the caller proceeds with a clean slate.
func (g *Guard) checkBlocked(ip string, now time.Time) (bool, string, error) {
	session, err := g.store.GetSession(ip)
	if err != nil {
		return false, "", err
	}
	if session == nil || !session.IsBlocked {
		return false, "", nil
	}
	if session.BlockExpires != nil && now.After(*session.BlockExpires) {
		if err := g.store.ClearBlock(ip, "Block expired", "auto_expire", now); err != nil {
			return false, "", err
		}
		return false, "", nil
	}
	return true, session.BlockReason, nil
}

// evaluateContent returns the flag reasons for a message, empty when clean.
func (g *Guard) evaluateContent(message string) []string {
	g.mu.RLock()
	words := g.words
	patterns := g.patterns
	patternSrc := g.patternSrc
	g.mu.RUnlock()

	var flags []string
	lower := strings.ToLower(message)

	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			flags = append(flags, "inappropriate_language:"+w)
		}
	}
	for i, re := range patterns {
		if re.MatchString(lower) {
			flags = append(flags, "pattern_match:"+patternSrc[i])
		}
	}
	if ratio, n := upperRatio(message); n > capsMinLength && ratio > capsRatioLimit {
		flags = append(flags, "excessive_caps")
	}
	if len(message) > maxMessageLength {
		flags = append(flags, "message_too_long")
	}
	if hasExcessiveRepeats(message, repeatRunLimit) {
		flags = append(flags, "excessive_repetition")
	}
	return flags
}

func upperRatio(s string) (float64, int) {
	var upper, total int
	for _, r := range s {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(upper) / float64(total), total
}

// hasExcessiveRepeats reports a run of n or more identical runes.
func hasExcessiveRepeats(s string, n int) bool {
	var last rune
	run := 0
	for _, r := range s {
		if r == last {
			run++
			if run >= n {
				return true
			}
		} else {
			last = r
			run = 1
		}
	}
	return false
}

// Block manually blocks ip for durationHours, recording who did it.
func (g *Guard) Block(ip, reason string, durationHours int, adminID string) error {
	now := g.now()
	expires := now.Add(time.Duration(durationHours) * time.Hour)
	return g.store.SetBlock(ip, reason, expires, adminID, now)
}

// Unblock removes any active block for ip. A no-op for unblocked IPs.
func (g *Guard) Unblock(ip, adminID string) error {
	return g.store.ClearBlock(ip, "Manual unblock", adminID, g.now())
}

// Stats returns the overall moderation statistics.
func (g *Guard) Stats() (*models.OverallStats, error) {
	return g.store.Stats()
}

// UserStats returns the per-IP detail, or ErrNotFound for unknown IPs.
func (g *Guard) UserStats(ip string) (*models.UserStats, error) {
	return g.store.UserStats(ip)
}

// RecentActivity returns the newest logged messages within the last `hours`.
func (g *Guard) RecentActivity(hours, limit int) ([]models.ActivityEntry, error) {
	return g.store.RecentActivity(g.now().Add(-time.Duration(hours)*time.Hour), limit)
}

// Config returns a copy of the current thresholds.
func (g *Guard) Config() models.ModerationConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// SetConfig validates, applies and persists new thresholds.
func (g *Guard) SetConfig(cfg models.ModerationConfig) error {
	if cfg.MaxMessagesPerHour <= 0 || cfg.AutoBlockThreshold <= 0 ||
		cfg.WarningThreshold <= 0 || cfg.BlockDurationHours <= 0 ||
		cfg.RateLimitWindowMinutes <= 0 {
		return fmt.Errorf("all moderation thresholds must be positive")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
	return g.persistConfigLocked()
}

// BadWords returns copies of the current word and pattern lists.
func (g *Guard) BadWords() models.BadWordList {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return models.BadWordList{
		Words:    append([]string(nil), g.words...),
		Patterns: append([]string(nil), g.patternSrc...),
	}
}

// SetBadWords replaces the word and pattern lists. Every pattern must
// compile; on any failure nothing is applied or persisted.
func (g *Guard) SetBadWords(list models.BadWordList) error {
	compiled := make([]*regexp.Regexp, 0, len(list.Patterns))
	for _, p := range list.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.words = list.Words
	g.patternSrc = list.Patterns
	g.patterns = compiled
	return g.persistBadWordsLocked()
}

func (g *Guard) loadConfig() error {
	data, err := os.ReadFile(g.configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &g.cfg); err != nil {
			return fmt.Errorf("failed to parse moderation config: %w", err)
		}
	case os.IsNotExist(err):
		g.cfg = defaultModerationConfig
		if err := g.persistConfigLocked(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to read moderation config: %w", err)
	}
	return nil
}

func (g *Guard) loadBadWords() error {
	data, err := os.ReadFile(g.wordsPath)
	switch {
	case err == nil:
		var list models.BadWordList
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("failed to parse bad words file: %w", err)
		}
		g.words = list.Words
		g.patternSrc = list.Patterns
	case os.IsNotExist(err):
		g.words = defaultBadWords
		g.patternSrc = defaultBadPatterns
		if err := g.persistBadWordsLocked(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to read bad words file: %w", err)
	}

	g.patterns = g.patterns[:0]
	for _, p := range g.patternSrc {
		re, err := regexp.Compile(p)
		if err != nil {
			// A broken pattern in the file must not take the service down.
			log.Printf("skipping invalid bad-word pattern %q: %v", p, err)
			continue
		}
		g.patterns = append(g.patterns, re)
	}
	// Keep sources aligned with what actually compiled.
	if len(g.patterns) != len(g.patternSrc) {
		kept := make([]string, 0, len(g.patterns))
		for _, re := range g.patterns {
			kept = append(kept, re.String())
		}
		g.patternSrc = kept
	}
	return nil
}

func (g *Guard) persistConfigLocked() error {
	data, err := json.MarshalIndent(g.cfg, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(g.configPath, data)
}

func (g *Guard) persistBadWordsLocked() error {
	data, err := json.MarshalIndent(models.BadWordList{Words: g.words, Patterns: g.patternSrc}, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(g.wordsPath, data)
}
