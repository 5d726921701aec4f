package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jisilva10/ALAIN2.0/internal/models"
	"github.com/jisilva10/ALAIN2.0/internal/redis"
)

// Store keys. Values are JSON blobs; this is deliberately a plain key-value
// layout so a stored session list round-trips byte-for-byte.
const (
	KeySessions = "sessions"
	KeyDrafts   = "drafts"
	KeyTheme    = "theme"
)

// Valid themes.
const (
	ThemeSystem = "system"
	ThemeLight  = "light"
	ThemeDark   = "dark"
)

const cacheTTL = 12 * time.Hour

// Store is the durable key-value persistence layer. Writes go to SQL first;
// the redis mirror is best-effort only (a failed cache write is logged, not
// surfaced).
type Store struct {
	db     *sql.DB
	driver string
	cache  *redis.Client
}

// NewStore wraps an opened database. cache may be nil.
func NewStore(db *sql.DB, driver string, cache *redis.Client) *Store {
	return &Store{db: db, driver: strings.ToLower(driver), cache: cache}
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	if val, err := s.cache.Get(ctx, "kv:"+key); err == nil {
		return val, true, nil
	}
	var value string
	err := s.db.QueryRowContext(ctx, s.selectStmt(), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, s.upsertStmt(), key, value, now); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := s.cache.Set(ctx, "kv:"+key, value, cacheTTL); err != nil {
		log.Printf("cache write for %s failed: %v", key, err)
	}
	return nil
}

func (s *Store) selectStmt() string {
	if s.driver == "mysql" {
		return "SELECT value FROM kv_store WHERE `key` = ?"
	}
	return `SELECT value FROM kv_store WHERE key = ?`
}

func (s *Store) upsertStmt() string {
	if s.driver == "mysql" {
		return "INSERT INTO kv_store (`key`, value, updated_at) VALUES (?, ?, ?) " +
			"ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)"
	}
	return `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
}

// LoadSessions returns the stored session list. Structural problems in the
// stored blob are rejected as ErrCorruptData, never silently coerced.
func (s *Store) LoadSessions(ctx context.Context) ([]*models.Session, error) {
	raw, ok, err := s.get(ctx, KeySessions)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("%w: sessions blob is not an array: %v", models.ErrCorruptData, err)
	}
	sessions := make([]*models.Session, 0, len(entries))
	for i, entry := range entries {
		se, err := decodeSession(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", models.ErrCorruptData, i, err)
		}
		sessions = append(sessions, se)
	}
	return sessions, nil
}

// decodeSession validates the shape the UI relies on: an id and a messages
// array (not null, not an object).
func decodeSession(raw json.RawMessage) (*models.Session, error) {
	var shape struct {
		ID       string          `json:"id"`
		Messages json.RawMessage `json:"messages"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, err
	}
	if shape.ID == "" {
		return nil, errors.New("missing session id")
	}
	trimmed := strings.TrimSpace(string(shape.Messages))
	if trimmed == "" || trimmed == "null" || !strings.HasPrefix(trimmed, "[") {
		return nil, errors.New("messages is not an array")
	}
	var se models.Session
	if err := json.Unmarshal(raw, &se); err != nil {
		return nil, err
	}
	return &se, nil
}

// SaveSessions writes the full session list through to SQL.
func (s *Store) SaveSessions(ctx context.Context, sessions []*models.Session) error {
	if sessions == nil {
		sessions = []*models.Session{}
	}
	blob, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return s.put(ctx, KeySessions, string(blob))
}

// LoadDrafts returns the per-session draft map.
func (s *Store) LoadDrafts(ctx context.Context) (map[string]string, error) {
	raw, ok, err := s.get(ctx, KeyDrafts)
	if err != nil {
		return nil, err
	}
	drafts := make(map[string]string)
	if !ok {
		return drafts, nil
	}
	if err := json.Unmarshal([]byte(raw), &drafts); err != nil {
		return nil, fmt.Errorf("%w: drafts blob: %v", models.ErrCorruptData, err)
	}
	return drafts, nil
}

// SaveDrafts replaces the whole draft map.
func (s *Store) SaveDrafts(ctx context.Context, drafts map[string]string) error {
	if drafts == nil {
		drafts = map[string]string{}
	}
	blob, err := json.Marshal(drafts)
	if err != nil {
		return fmt.Errorf("encode drafts: %w", err)
	}
	return s.put(ctx, KeyDrafts, string(blob))
}

// SetDraft updates one session's draft; empty text removes the entry.
func (s *Store) SetDraft(ctx context.Context, sessionID, text string) error {
	drafts, err := s.LoadDrafts(ctx)
	if err != nil {
		return err
	}
	if text == "" {
		delete(drafts, sessionID)
	} else {
		drafts[sessionID] = text
	}
	return s.SaveDrafts(ctx, drafts)
}

// Draft returns the stored draft for a session, empty when absent.
func (s *Store) Draft(ctx context.Context, sessionID string) (string, error) {
	drafts, err := s.LoadDrafts(ctx)
	if err != nil {
		return "", err
	}
	return drafts[sessionID], nil
}

// DeleteDraft drops a session's draft (used when the session is deleted).
func (s *Store) DeleteDraft(ctx context.Context, sessionID string) error {
	return s.SetDraft(ctx, sessionID, "")
}

// Theme returns the stored theme, defaulting to "system".
func (s *Store) Theme(ctx context.Context) (string, error) {
	raw, ok, err := s.get(ctx, KeyTheme)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return ThemeSystem, nil
	}
	return raw, nil
}

// SetTheme validates and stores the theme.
func (s *Store) SetTheme(ctx context.Context, theme string) error {
	switch theme {
	case ThemeSystem, ThemeLight, ThemeDark:
	default:
		return fmt.Errorf("%w: unknown theme %q", models.ErrInvalidFormat, theme)
	}
	return s.put(ctx, KeyTheme, theme)
}
