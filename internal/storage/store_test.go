package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jisilva10/ALAIN2.0/internal/config"
	"github.com/jisilva10/ALAIN2.0/internal/models"
)

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return NewStore(db, "sqlite3", nil), db
}

func TestSessionsRoundTrip(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()
	ctx := context.Background()

	loaded, err := store.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected no sessions, got %d", len(loaded))
	}

	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	sessions := []*models.Session{{
		ID:             "s1",
		DisplayTitle:   "Acme: Lanzamiento",
		OwnerLabel:     "Acme",
		TopicLabel:     "Lanzamiento",
		CreatedAt:      now,
		LastActivityAt: now,
		MessageLog: []models.PersistedMessage{
			{ID: "m1", Role: models.RoleUser, Text: "Hola", CreatedAt: now},
			{ID: "m2", Role: models.RoleModel, Text: " mundo", CreatedAt: now, Citations: []models.Citation{{URI: "https://example.com"}}},
		},
		InstructionProfile: "perfil",
		Kind:               models.KindUserOwned,
	}}
	if err := store.SaveSessions(ctx, sessions); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err = store.LoadSessions(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 session, got %d", len(loaded))
	}
	got := loaded[0]
	if got.ID != "s1" || got.DisplayTitle != "Acme: Lanzamiento" || len(got.MessageLog) != 2 {
		t.Fatalf("loaded session = %+v", got)
	}
	if got.MessageLog[1].Citations[0].URI != "https://example.com" {
		t.Fatalf("citations lost: %+v", got.MessageLog[1])
	}
}

func TestLoadSessionsRejectsCorruptData(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()
	ctx := context.Background()

	cases := []struct {
		name string
		blob string
	}{
		{"not an array", `{"id":"s1"}`},
		{"missing id", `[{"title":"x","messages":[]}]`},
		{"messages missing", `[{"id":"s1","title":"x"}]`},
		{"messages not array", `[{"id":"s1","title":"x","messages":{"bad":true}}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := store.put(ctx, KeySessions, tc.blob); err != nil {
				t.Fatalf("seed blob: %v", err)
			}
			if _, err := store.LoadSessions(ctx); !errors.Is(err, models.ErrCorruptData) {
				t.Fatalf("expected ErrCorruptData, got %v", err)
			}
		})
	}
}

func TestDrafts(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()
	ctx := context.Background()

	if err := store.SetDraft(ctx, "s1", "borrador"); err != nil {
		t.Fatalf("set draft: %v", err)
	}
	text, err := store.Draft(ctx, "s1")
	if err != nil || text != "borrador" {
		t.Fatalf("draft = %q, err = %v", text, err)
	}

	// Empty text removes the entry.
	if err := store.SetDraft(ctx, "s1", ""); err != nil {
		t.Fatalf("clear draft: %v", err)
	}
	drafts, err := store.LoadDrafts(ctx)
	if err != nil {
		t.Fatalf("load drafts: %v", err)
	}
	if _, ok := drafts["s1"]; ok {
		t.Fatalf("draft not removed: %#v", drafts)
	}
}

func TestTheme(t *testing.T) {
	store, db := newTestStore(t)
	defer db.Close()
	ctx := context.Background()

	theme, err := store.Theme(ctx)
	if err != nil || theme != ThemeSystem {
		t.Fatalf("default theme = %q, err = %v", theme, err)
	}

	if err := store.SetTheme(ctx, ThemeDark); err != nil {
		t.Fatalf("set theme: %v", err)
	}
	theme, err = store.Theme(ctx)
	if err != nil || theme != ThemeDark {
		t.Fatalf("theme = %q, err = %v", theme, err)
	}

	if err := store.SetTheme(ctx, "sepia"); !errors.Is(err, models.ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}
