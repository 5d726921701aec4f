package controller

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jisilva10/ALAIN2.0/internal/attachment"
	"github.com/jisilva10/ALAIN2.0/internal/history"
	"github.com/jisilva10/ALAIN2.0/internal/models"
	"github.com/jisilva10/ALAIN2.0/internal/service/ai"
	"github.com/jisilva10/ALAIN2.0/internal/service/registry"
	"github.com/jisilva10/ALAIN2.0/internal/storage"
	"github.com/jisilva10/ALAIN2.0/internal/worker"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// State of the controller. Exactly one session is active at a time, or none.
type State string

const (
	StateNoActiveSession State = "no_active_session"
	StateSessionReady    State = "session_ready"
	StateBusy            State = "busy"
	StateEditingTurn     State = "editing_turn"
)

// pdfCommandRe matches prompts that ask the assistant itself to produce a
// PDF. Document generation happens client-side, so these are answered with a
// local note instead of an API round trip.
var pdfCommandRe = regexp.MustCompile(`(?i)^(genera|crea|descarga|env[íi]a|m[áa]ndame)(me)? un pdf`)

const (
	noteNoActiveSession = "Primero crea o selecciona una sesión para comenzar. Tu mensaje quedó guardado y se enviará en cuanto haya una conversación activa."
	notePDFCommand      = "La exportación a PDF se genera desde el panel de la conversación con el botón de descarga. No necesito generarlo yo."
	noteStreamFailed    = "Lo siento, ocurrió un error al generar la respuesta. Inténtalo de nuevo."
)

func noteUnsupportedFile(mime string) string {
	return fmt.Sprintf("Lo siento, no puedo procesar archivos de tipo '%s'. Intenta con una imagen, video, audio, texto o PDF.", mime)
}

func fileReceivedPrompt(name string) string {
	return fmt.Sprintf("Archivo '%s' recibido y procesado. Por favor, analízalo.", name)
}

type pendingTurn struct {
	prompt     string
	attachment *attachment.Incoming
}

// OutcomeKind classifies what Send did.
type OutcomeKind string

const (
	// OutcomeStreamed means a model exchange ran.
	OutcomeStreamed OutcomeKind = "streamed"
	// OutcomeNote means the turn was answered locally with no API call.
	OutcomeNote OutcomeKind = "note"
	// OutcomeStashed means there was no active session; the turn waits.
	OutcomeStashed OutcomeKind = "stashed"
	// OutcomeNoop means there was nothing to send.
	OutcomeNoop OutcomeKind = "noop"
)

// SendOutcome is what the transport layer turns into its terminal event.
type SendOutcome struct {
	Kind          OutcomeKind
	UserMessage   *models.UIMessage
	Reply         *models.UIMessage
	ActivatedMode string
}

// Controller owns the active-session state machine. All mutation goes
// through its methods; while an exchange is in flight every conflicting
// operation is refused with ErrBusy rather than queued.
type Controller struct {
	mu       sync.Mutex
	reg      *registry.Registry
	store    *storage.Store
	streamer ai.Streamer
	pool     *worker.Pool

	state    State
	activeID string
	uiLog    []models.UIMessage
	pending  *pendingTurn
	now      func() time.Time
}

func New(reg *registry.Registry, store *storage.Store, streamer ai.Streamer, pool *worker.Pool) *Controller {
	return &Controller{
		reg:      reg,
		store:    store,
		streamer: streamer,
		pool:     pool,
		state:    StateNoActiveSession,
		now:      time.Now,
	}
}

// State reports the current controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveID reports the active session id, empty when none.
func (c *Controller) ActiveID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// UIMessages returns a snapshot of the transient display list.
func (c *Controller) UIMessages() []models.UIMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.UIMessage, len(c.uiLog))
	copy(out, c.uiLog)
	return out
}

// Send runs one user turn. emit receives streamed deltas; it may be nil when
// nobody is watching (background replay). The returned outcome describes the
// terminal event the transport should deliver. While a turn edit is open the
// send is refused; the edit leaves through SaveEdit or CancelEdit only.
func (c *Controller) Send(ctx context.Context, prompt string, att *attachment.Incoming, emit func(ai.Delta) error) (*SendOutcome, error) {
	prompt = strings.TrimSpace(prompt)

	c.mu.Lock()
	switch c.state {
	case StateBusy:
		c.mu.Unlock()
		return nil, models.ErrBusy
	case StateEditingTurn:
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: finish or cancel the open edit first", models.ErrBusy)
	}
	if prompt == "" && att == nil {
		c.mu.Unlock()
		return &SendOutcome{Kind: OutcomeNoop}, nil
	}
	if c.activeID == "" {
		c.pending = &pendingTurn{prompt: prompt, attachment: att}
		note := c.appendNoteLocked(models.SenderSystem, noteNoActiveSession)
		c.mu.Unlock()
		return &SendOutcome{Kind: OutcomeStashed, Reply: note}, nil
	}
	if att != nil {
		if err := attachment.Validate(*att); err != nil {
			note := c.appendNoteLocked(models.SenderAI, noteUnsupportedFile(att.MIMEType))
			c.mu.Unlock()
			log.Printf("attachment rejected: %v", err)
			return &SendOutcome{Kind: OutcomeNote, Reply: note}, nil
		}
	}
	if att == nil && pdfCommandRe.MatchString(prompt) {
		note := c.appendNoteLocked(models.SenderSystem, notePDFCommand)
		c.mu.Unlock()
		return &SendOutcome{Kind: OutcomeNote, Reply: note}, nil
	}

	se, err := c.reg.Get(c.activeID)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if se.Kind == models.KindTemplate {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", models.ErrReadOnlyTemplate, se.ID)
	}

	c.state = StateBusy
	sessionID := c.activeID
	c.mu.Unlock()

	outcome, err := c.runExchange(ctx, se, sessionID, prompt, att, emit)

	c.mu.Lock()
	if c.activeID == "" {
		c.state = StateNoActiveSession
	} else {
		c.state = StateSessionReady
	}
	c.mu.Unlock()
	return outcome, err
}

// runExchange persists the user turn, streams the reply, and commits the
// model turn. The caller has already moved the controller to Busy.
func (c *Controller) runExchange(ctx context.Context, se *models.Session, sessionID, prompt string, att *attachment.Incoming, emit func(ai.Delta) error) (*SendOutcome, error) {
	// Wire history is the log as it stood before this turn.
	req := ai.TurnRequest{
		SessionID:   sessionID,
		Instruction: se.InstructionProfile,
		History:     history.ToWireHistory(se.MessageLog),
	}

	attName := ""
	wirePrompt := prompt
	if att != nil {
		attName = att.Name
		if wirePrompt == "" {
			wirePrompt = fileReceivedPrompt(att.Name)
		}
		blob, err := attachment.ToPart(*att)
		if err != nil {
			return nil, err
		}
		req.Parts = []*genai.Part{{Text: wirePrompt}, blob}
	} else {
		req.Parts = []*genai.Part{{Text: wirePrompt}}
	}

	now := c.now()
	if _, err := c.reg.Update(ctx, sessionID, func(s *models.Session) error {
		history.AppendUserTurn(s, prompt, attName, now)
		return nil
	}); err != nil {
		return nil, err
	}

	userUI := models.UIMessage{
		ID:        uuid.NewString(),
		Sender:    models.SenderUser,
		Text:      prompt,
		Timestamp: now,
	}
	if attName != "" {
		userUI.Attachment = attachment.Display(attName)
	}
	c.mu.Lock()
	c.uiLog = append(c.uiLog, userUI)
	c.mu.Unlock()

	result, err := c.streamer.StreamTurn(ctx, req, c.guardEmit(sessionID, emit))
	if err != nil {
		errUI := c.lockAndAppendNote(models.SenderError, noteStreamFailed)
		log.Printf("exchange for %s failed: %v", sessionID, err)
		return &SendOutcome{Kind: OutcomeStreamed, UserMessage: &userUI, Reply: errUI}, err
	}

	done := c.now()
	if _, err := c.reg.Update(ctx, sessionID, func(s *models.Session) error {
		history.AppendModelTurn(s, result.FinalText, result.Citations, done)
		return nil
	}); err != nil {
		return nil, err
	}

	replyUI := models.UIMessage{
		ID:         uuid.NewString(),
		Sender:     models.SenderAI,
		Text:       history.Clean(result.FinalText),
		Timestamp:  done,
		ImageLinks: result.ImageLinks,
		Citations:  result.Citations,
	}
	c.mu.Lock()
	c.uiLog = append(c.uiLog, replyUI)
	c.mu.Unlock()

	c.scheduleAutoTitle(sessionID)

	return &SendOutcome{
		Kind:          OutcomeStreamed,
		UserMessage:   &userUI,
		Reply:         &replyUI,
		ActivatedMode: result.ActivatedMode,
	}, nil
}

// guardEmit drops deltas that refer to a session that is no longer active,
// so a stale stream can never paint over a different conversation.
func (c *Controller) guardEmit(sessionID string, emit func(ai.Delta) error) func(ai.Delta) error {
	if emit == nil {
		return nil
	}
	return func(d ai.Delta) error {
		if d.SessionID != sessionID {
			return nil
		}
		c.mu.Lock()
		active := c.activeID
		c.mu.Unlock()
		if active != sessionID {
			return nil
		}
		return emit(d)
	}
}

func (c *Controller) scheduleAutoTitle(sessionID string) {
	if c.pool == nil {
		c.reg.AutoTitle(context.Background(), sessionID, c.streamer)
		return
	}
	c.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		c.reg.AutoTitle(ctx, sessionID, c.streamer)
	})
}

func (c *Controller) appendNoteLocked(sender models.Sender, text string) *models.UIMessage {
	ui := models.UIMessage{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: c.now(),
	}
	c.uiLog = append(c.uiLog, ui)
	return &ui
}

func (c *Controller) lockAndAppendNote(sender models.Sender, text string) *models.UIMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendNoteLocked(sender, text)
}
