package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jisilva10/ALAIN2.0/internal/attachment"
	"github.com/jisilva10/ALAIN2.0/internal/controller"
	"github.com/jisilva10/ALAIN2.0/internal/history"
	"github.com/jisilva10/ALAIN2.0/internal/models"
	"github.com/jisilva10/ALAIN2.0/internal/service/ai"
	"github.com/jisilva10/ALAIN2.0/internal/service/registry"
	"github.com/jisilva10/ALAIN2.0/internal/storage"
)

// Handler wires HTTP routes to the session registry and chat controller.
type Handler struct {
	ctrl  *controller.Controller
	reg   *registry.Registry
	store *storage.Store
}

func NewHandler(ctrl *controller.Controller, reg *registry.Registry, store *storage.Store) *Handler {
	return &Handler{ctrl: ctrl, reg: reg, store: store}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/sessions", h.listSessions)
	api.POST("/sessions", h.createSession)
	api.POST("/sessions/import", h.importSession)
	api.POST("/sessions/:id/clone", h.cloneSession)
	api.POST("/sessions/:id/activate", h.activateSession)
	api.PUT("/sessions/:id", h.renameSession)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.GET("/sessions/:id/messages", h.getSessionMessages)
	api.GET("/sessions/:id/export", h.exportSession)
	api.GET("/drafts/:id", h.getDraft)
	api.PUT("/drafts/:id", h.putDraft)
	api.GET("/theme", h.getTheme)
	api.PUT("/theme", h.putTheme)
	api.POST("/chat", h.chat)
	api.POST("/chat/edit", h.chatEdit)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, models.ErrReadOnlyTemplate):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidFormat),
		errors.Is(err, models.ErrCorruptData),
		errors.Is(err, models.ErrUnsupportedAttachment),
		errors.Is(err, models.ErrNoActiveSession):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (h *Handler) listSessions(c *gin.Context) {
	templates, users := h.reg.Search(c.Query("q"))
	if templates == nil {
		templates = []*models.Session{}
	}
	if users == nil {
		users = []*models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{
		"templates": templates,
		"sessions":  users,
		"activeId":  h.ctrl.ActiveID(),
	})
}

type createSessionRequest struct {
	ClientName        string `json:"clientName"`
	Topic             string `json:"topic"`
	SystemInstruction string `json:"systemInstruction"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	se, err := h.reg.Create(c.Request.Context(), req.ClientName, req.Topic, req.SystemInstruction)
	if err != nil {
		fail(c, err)
		return
	}
	h.respondActivated(c, se.ID, "")
}

func (h *Handler) cloneSession(c *gin.Context) {
	se, err := h.reg.CloneTemplate(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	h.respondActivated(c, se.ID, "")
}

type activateRequest struct {
	// OutgoingDraft is the unsent input of the session being left.
	OutgoingDraft string `json:"outgoingDraft"`
}

func (h *Handler) activateSession(c *gin.Context) {
	var req activateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	h.respondActivated(c, c.Param("id"), req.OutgoingDraft)
}

func (h *Handler) respondActivated(c *gin.Context, id, outgoingDraft string) {
	messages, draft, err := h.ctrl.Switch(c.Request.Context(), id, outgoingDraft)
	if err != nil {
		fail(c, err)
		return
	}
	se, err := h.reg.Get(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  se,
		"messages": messages,
		"draft":    draft,
	})
}

type renameRequest struct {
	ClientName string `json:"clientName"`
	Topic      string `json:"topic"`
}

func (h *Handler) renameSession(c *gin.Context) {
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.reg.Rename(c.Request.Context(), c.Param("id"), req.ClientName, req.Topic); err != nil {
		fail(c, err)
		return
	}
	se, err := h.reg.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": se})
}

func (h *Handler) deleteSession(c *gin.Context) {
	replacement, err := h.ctrl.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replacementId": replacement})
}

func (h *Handler) getSessionMessages(c *gin.Context) {
	se, err := h.reg.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  se,
		"messages": history.RebuildUIMessages(se.MessageLog),
	})
}

func (h *Handler) exportSession(c *gin.Context) {
	blob, filename, err := h.reg.Export(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json", blob)
}

func (h *Handler) importSession(c *gin.Context) {
	blob, err := c.GetRawData()
	if err != nil || len(blob) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body required"})
		return
	}
	overwrite := c.Query("overwrite") == "true"
	se, err := h.reg.Import(c.Request.Context(), blob, overwrite)
	if err != nil {
		if errors.Is(err, models.ErrInvalidFormat) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": se})
}

func (h *Handler) getDraft(c *gin.Context) {
	text, err := h.store.Draft(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}

type draftRequest struct {
	Text string `json:"text"`
}

func (h *Handler) putDraft(c *gin.Context) {
	var req draftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.store.SetDraft(c.Request.Context(), c.Param("id"), req.Text); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getTheme(c *gin.Context) {
	theme, err := h.store.Theme(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": theme})
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (h *Handler) putTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.store.SetTheme(c.Request.Context(), req.Theme); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"theme": req.Theme})
}

// Chat input interface
type chatRequest struct {
	Prompt     string             `json:"prompt"`
	Attachment *attachmentPayload `json:"attachment"`
}

type attachmentPayload struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	// Data arrives base64-encoded in JSON.
	Data []byte `json:"data"`
}

func (p *attachmentPayload) incoming() *attachment.Incoming {
	if p == nil {
		return nil
	}
	return &attachment.Incoming{Name: p.Name, MIMEType: p.MIMEType, Data: p.Data}
}

func (h *Handler) chat(c *gin.Context) {
	h.streamTurn(c, false)
}

func (h *Handler) chatEdit(c *gin.Context) {
	h.streamTurn(c, true)
}

func (h *Handler) streamTurn(c *gin.Context, edit bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	sendEvent := func(event string, payload interface{}) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if event != "" {
			if _, err := fmt.Fprintf(c.Writer, "event: %s\n", event); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := sendEvent("ack", gin.H{
		"prompt":    req.Prompt,
		"sessionId": h.ctrl.ActiveID(),
	}); err != nil {
		return
	}

	streamCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	emit := func(d ai.Delta) error {
		return sendEvent("stream", gin.H{"sessionId": d.SessionID, "content": d.Text})
	}

	var (
		outcome *controller.SendOutcome
		err     error
	)
	if edit {
		outcome, err = h.ctrl.SaveEdit(streamCtx, req.Prompt, emit)
	} else {
		outcome, err = h.ctrl.Send(streamCtx, req.Prompt, req.Attachment.incoming(), emit)
	}
	if err != nil {
		_ = sendEvent("error", gin.H{"message": err.Error(), "status": statusFor(err)})
		return
	}

	payload := gin.H{"kind": outcome.Kind}
	if outcome.UserMessage != nil {
		payload["userMessage"] = outcome.UserMessage
	}
	if outcome.Reply != nil {
		payload["reply"] = outcome.Reply
	}
	if outcome.ActivatedMode != "" {
		payload["activatedMode"] = outcome.ActivatedMode
	}
	_ = sendEvent("done", payload)
}
