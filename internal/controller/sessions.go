package controller

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jisilva10/ALAIN2.0/internal/history"
	"github.com/jisilva10/ALAIN2.0/internal/models"
	"github.com/jisilva10/ALAIN2.0/internal/prompts"
	"github.com/jisilva10/ALAIN2.0/internal/service/ai"

	"github.com/google/uuid"
)

// Switch makes another session active. The outgoing session's unsent input
// is saved as its draft; the incoming session's transient message list is
// rebuilt from its persisted log and its stored draft is returned. A stashed
// pending turn is replayed in the background once the new session is live.
func (c *Controller) Switch(ctx context.Context, id, outgoingDraft string) ([]models.UIMessage, string, error) {
	se, err := c.reg.Get(id)
	if err != nil {
		return nil, "", err
	}

	c.mu.Lock()
	if c.state == StateBusy {
		c.mu.Unlock()
		return nil, "", models.ErrBusy
	}
	previous := c.activeID
	c.activeID = id
	c.state = StateSessionReady
	c.uiLog = history.RebuildUIMessages(se.MessageLog)
	if len(se.MessageLog) == 0 {
		// Display-only greeting; it never enters the persisted log.
		c.uiLog = append(c.uiLog, models.UIMessage{
			ID:        uuid.NewString(),
			Sender:    models.SenderAI,
			Text:      prompts.GreetingFor(se.InstructionProfile),
			Timestamp: c.now(),
		})
	}
	snapshot := make([]models.UIMessage, len(c.uiLog))
	copy(snapshot, c.uiLog)
	canReplay := se.Kind == models.KindUserOwned
	c.mu.Unlock()

	if previous != "" && previous != id {
		if err := c.store.SetDraft(ctx, previous, outgoingDraft); err != nil {
			log.Printf("save draft for %s: %v", previous, err)
		}
	}

	draft, err := c.store.Draft(ctx, id)
	if err != nil {
		log.Printf("load draft for %s: %v", id, err)
		draft = ""
	}

	if canReplay {
		c.replayPending()
	}
	return snapshot, draft, nil
}

// Delete removes a session. Deleting the active session promotes the most
// recently used user session, or leaves the controller with none. Returns
// the id of the replacement, empty when there is none or the deleted session
// was not active.
func (c *Controller) Delete(ctx context.Context, id string) (string, error) {
	c.mu.Lock()
	if c.state == StateBusy && id == c.activeID {
		c.mu.Unlock()
		return "", models.ErrBusy
	}
	wasActive := id == c.activeID
	c.mu.Unlock()

	if err := c.reg.Delete(ctx, id); err != nil {
		return "", err
	}
	if !wasActive {
		return "", nil
	}

	replacement := c.reg.MostRecentUser()
	if replacement == nil {
		c.mu.Lock()
		c.activeID = ""
		c.state = StateNoActiveSession
		c.uiLog = nil
		c.mu.Unlock()
		return "", nil
	}

	c.mu.Lock()
	c.activeID = replacement.ID
	c.state = StateSessionReady
	c.uiLog = history.RebuildUIMessages(replacement.MessageLog)
	c.mu.Unlock()
	return replacement.ID, nil
}

// BeginEdit enters turn-editing mode and returns the clean text of the last
// user turn so the client can prefill its input. ErrNotFound when the log
// has no user turn to edit.
func (c *Controller) BeginEdit() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateBusy {
		return "", models.ErrBusy
	}
	if c.activeID == "" {
		return "", models.ErrNoActiveSession
	}
	se, err := c.reg.Get(c.activeID)
	if err != nil {
		return "", err
	}
	for i := len(se.MessageLog) - 1; i >= 0; i-- {
		if se.MessageLog[i].Role == models.RoleUser {
			c.state = StateEditingTurn
			return history.ExtractSegments(se.MessageLog[i].Text).CleanText, nil
		}
	}
	return "", fmt.Errorf("%w: no user turn to edit", models.ErrNotFound)
}

// CancelEdit leaves turn-editing mode without touching the logs.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	if c.state == StateEditingTurn {
		c.state = StateSessionReady
	}
	c.mu.Unlock()
}

// SaveEdit replaces the last user turn: the persisted log and the display
// list are both cut back to just before that turn, then the new text goes
// through the regular send path, producing exactly one new exchange. A blank
// replacement is treated as a cancel and leaves both logs untouched.
func (c *Controller) SaveEdit(ctx context.Context, newText string, emit func(ai.Delta) error) (*SendOutcome, error) {
	newText = strings.TrimSpace(newText)

	c.mu.Lock()
	if c.state == StateBusy {
		c.mu.Unlock()
		return nil, models.ErrBusy
	}
	if c.activeID == "" {
		c.mu.Unlock()
		return nil, models.ErrNoActiveSession
	}
	if newText == "" {
		if c.state == StateEditingTurn {
			c.state = StateSessionReady
		}
		c.mu.Unlock()
		return &SendOutcome{Kind: OutcomeNoop}, nil
	}
	se, err := c.reg.Update(ctx, c.activeID, func(s *models.Session) error {
		_, err := history.TruncateFromLastUserTurn(s)
		return err
	})
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if trimmed, err := history.TruncateUIFromLastUserTurn(c.uiLog); err == nil {
		c.uiLog = trimmed
	} else {
		// The display list drifted (greeting-only, system notes); rebuild
		// it from the now-truncated log instead.
		c.uiLog = history.RebuildUIMessages(se.MessageLog)
	}
	c.state = StateSessionReady
	c.mu.Unlock()

	return c.Send(ctx, newText, nil, emit)
}

// replayPending fires the stashed turn against the newly active session.
// Deltas go nowhere; the committed turns appear on the next load.
func (c *Controller) replayPending() {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()
	if p == nil {
		return
	}
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := c.Send(ctx, p.prompt, p.attachment, nil); err != nil {
			log.Printf("replay of stashed turn failed: %v", err)
		}
	}
	if c.pool != nil {
		c.pool.Submit(run)
		return
	}
	go run()
}
