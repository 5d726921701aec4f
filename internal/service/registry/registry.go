package registry

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jisilva10/ALAIN2.0/internal/history"
	"github.com/jisilva10/ALAIN2.0/internal/models"
	"github.com/jisilva10/ALAIN2.0/internal/prompts"
	"github.com/jisilva10/ALAIN2.0/internal/storage"

	"github.com/google/uuid"
)

// PlaceholderTopic marks a session whose topic has not been chosen yet; the
// auto-title pass only fires while it is still in place.
const PlaceholderTopic = "Nuevo chat..."

// ExportExtension is the file extension for exported sessions.
const ExportExtension = ".session"

// Titler produces a short conversation title. Failures are tolerated.
type Titler interface {
	GenerateTitle(ctx context.Context, conversation string) (string, error)
}

// Registry owns the full session collection in memory and writes every
// mutation through the persistence store immediately. It is safe for
// concurrent use: handlers, background auto-title jobs, and turn replays all
// reach it at once. Reads hand out deep copies; mutation goes through Update
// so nothing outside the lock ever touches a stored session.
type Registry struct {
	mu       sync.RWMutex
	store    *storage.Store
	sessions map[string]*models.Session
	now      func() time.Time
}

func New(store *storage.Store) *Registry {
	return &Registry{
		store:    store,
		sessions: make(map[string]*models.Session),
		now:      time.Now,
	}
}

// Load pulls the stored sessions and reconciles the template catalog:
// missing templates are inserted, templates whose topic or instruction
// drifted from the catalog are re-synced. User sessions are untouched.
func (r *Registry) Load(ctx context.Context) error {
	stored, err := r.store.LoadSessions(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, se := range stored {
		r.sessions[se.ID] = se
	}

	changed := false
	for _, t := range prompts.Catalog() {
		existing, ok := r.sessions[t.ID]
		if ok && existing.TopicLabel == t.Topic && existing.InstructionProfile == t.Instruction {
			continue
		}
		now := r.now()
		created := now
		if ok {
			created = existing.CreatedAt
		}
		r.sessions[t.ID] = &models.Session{
			ID:                 t.ID,
			DisplayTitle:       t.Topic,
			TopicLabel:         t.Topic,
			CreatedAt:          created,
			LastActivityAt:     now,
			MessageLog:         []models.PersistedMessage{},
			InstructionProfile: t.Instruction,
			Kind:               models.KindTemplate,
		}
		changed = true
	}
	if changed {
		return r.saveLocked(ctx)
	}
	return nil
}

// saveLocked persists the full collection. Callers hold r.mu.
func (r *Registry) saveLocked(ctx context.Context) error {
	all := make([]*models.Session, 0, len(r.sessions))
	for _, se := range r.sessions {
		all = append(all, se)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return r.store.SaveSessions(ctx, all)
}

// Get returns a deep copy of the session. Mutating it changes nothing;
// commit changes through Update.
func (r *Registry) Get(id string) (*models.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	se, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	return se.Clone(), nil
}

// Update applies fn to a working copy of the session, then atomically swaps
// it in and persists. When fn or the write fails, the stored session is left
// exactly as it was. Returns a copy of the committed state.
func (r *Registry) Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	se, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	cp := se.Clone()
	if err := fn(cp); err != nil {
		return nil, err
	}
	r.sessions[id] = cp
	if err := r.saveLocked(ctx); err != nil {
		r.sessions[id] = se
		return nil, err
	}
	return cp.Clone(), nil
}

// Create adds a user session. An empty profile falls back to the base
// instruction.
func (r *Registry) Create(ctx context.Context, owner, topic, profile string) (*models.Session, error) {
	if profile == "" {
		profile = prompts.BaseInstruction
	}
	if topic == "" {
		topic = PlaceholderTopic
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	se := &models.Session{
		ID:                 uuid.NewString(),
		DisplayTitle:       displayTitle(owner, topic),
		OwnerLabel:         owner,
		TopicLabel:         topic,
		CreatedAt:          now,
		LastActivityAt:     now,
		MessageLog:         []models.PersistedMessage{},
		InstructionProfile: profile,
		Kind:               models.KindUserOwned,
	}
	r.sessions[se.ID] = se
	if err := r.saveLocked(ctx); err != nil {
		delete(r.sessions, se.ID)
		return nil, err
	}
	return se.Clone(), nil
}

// CloneTemplate spawns a fresh user session from a template blueprint. The
// template's topic becomes the new session's owner label and the topic starts
// at the placeholder, so the first auto-title pass names it.
func (r *Registry) CloneTemplate(ctx context.Context, templateID string) (*models.Session, error) {
	r.mu.RLock()
	tpl, ok := r.sessions[templateID]
	if !ok || tpl.Kind != models.KindTemplate {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: template %s", models.ErrNotFound, templateID)
	}
	owner, profile := tpl.TopicLabel, tpl.InstructionProfile
	r.mu.RUnlock()
	return r.Create(ctx, owner, PlaceholderTopic, profile)
}

// Delete removes a user session and its draft. Templates are permanent.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	se, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: session %s", models.ErrNotFound, id)
	}
	if se.Kind == models.KindTemplate {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", models.ErrReadOnlyTemplate, id)
	}
	delete(r.sessions, id)
	if err := r.saveLocked(ctx); err != nil {
		r.sessions[id] = se
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	if err := r.store.DeleteDraft(ctx, id); err != nil {
		log.Printf("drop draft for deleted session %s: %v", id, err)
	}
	return nil
}

// List returns templates in catalog order and user sessions by recency.
// Every entry is a copy.
func (r *Registry) List() (templates, users []*models.Session) {
	return r.filtered("")
}

// Search filters user sessions by a case-insensitive match over owner,
// topic, title, or any message text. Templates always ride along unfiltered.
func (r *Registry) Search(filter string) (templates, users []*models.Session) {
	return r.filtered(filter)
}

func (r *Registry) filtered(filter string) (templates, users []*models.Session) {
	filter = strings.ToLower(strings.TrimSpace(filter))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range prompts.Catalog() {
		if se, ok := r.sessions[t.ID]; ok {
			templates = append(templates, se.Clone())
		}
	}
	for _, se := range r.sessions {
		if se.Kind != models.KindUserOwned {
			continue
		}
		if filter != "" && !sessionMatches(se, filter) {
			continue
		}
		users = append(users, se.Clone())
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].LastActivityAt.After(users[j].LastActivityAt)
	})
	return templates, users
}

func sessionMatches(se *models.Session, filter string) bool {
	if strings.Contains(strings.ToLower(se.OwnerLabel), filter) ||
		strings.Contains(strings.ToLower(se.TopicLabel), filter) ||
		strings.Contains(strings.ToLower(se.DisplayTitle), filter) {
		return true
	}
	for _, m := range se.MessageLog {
		if strings.Contains(strings.ToLower(m.Text), filter) {
			return true
		}
	}
	return false
}

// MostRecentUser returns a copy of the freshest user session by last
// activity, or nil.
func (r *Registry) MostRecentUser() *models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *models.Session
	for _, se := range r.sessions {
		if se.Kind != models.KindUserOwned {
			continue
		}
		if best == nil || se.LastActivityAt.After(best.LastActivityAt) {
			best = se
		}
	}
	if best == nil {
		return nil
	}
	return best.Clone()
}

// Rename updates the labels and recomputes the display title.
func (r *Registry) Rename(ctx context.Context, id, owner, topic string) error {
	_, err := r.Update(ctx, id, func(se *models.Session) error {
		if se.Kind == models.KindTemplate {
			return fmt.Errorf("%w: %s", models.ErrReadOnlyTemplate, id)
		}
		se.OwnerLabel = owner
		se.TopicLabel = topic
		se.DisplayTitle = displayTitle(owner, topic)
		se.Touch(r.now())
		return nil
	})
	return err
}

// Touch bumps a session's recency and persists.
func (r *Registry) Touch(ctx context.Context, id string) error {
	_, err := r.Update(ctx, id, func(se *models.Session) error {
		se.Touch(r.now())
		return nil
	})
	return err
}

// AutoTitle names a session from its first two turns. It only fires while
// the topic is still the placeholder and at least two turns are committed.
// Any failure is logged and swallowed; this runs as best-effort background
// work. The title call happens outside the lock, so the gate is re-checked
// when the result is committed.
func (r *Registry) AutoTitle(ctx context.Context, id string, titler Titler) {
	se, err := r.Get(id)
	if err != nil || se.Kind != models.KindUserOwned {
		return
	}
	if se.TopicLabel != PlaceholderTopic || len(se.MessageLog) < 2 {
		return
	}

	var sb strings.Builder
	for _, m := range se.MessageLog[:2] {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, history.Clean(m.Text))
	}
	title, err := titler.GenerateTitle(ctx, sb.String())
	if err != nil || title == "" {
		log.Printf("auto-title for %s skipped: %v", id, err)
		return
	}

	_, err = r.Update(ctx, id, func(cur *models.Session) error {
		if cur.TopicLabel != PlaceholderTopic {
			return nil
		}
		cur.TopicLabel = title
		cur.DisplayTitle = displayTitle(cur.OwnerLabel, title)
		return nil
	})
	if err != nil {
		log.Printf("persist auto-title for %s: %v", id, err)
	}
}

func displayTitle(owner, topic string) string {
	if owner == "" {
		return topic
	}
	return fmt.Sprintf("%s: %s", owner, topic)
}
