package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/orionai/orion/internal/ai"
	"github.com/orionai/orion/internal/chat"
	"github.com/orionai/orion/internal/common"
)

const locationCacheTTL = 15 * time.Minute

type attachmentReq struct {
	Data     string `json:"data" binding:"required"`
	MIMEType string `json:"mime_type" binding:"required"`
}

func (a *attachmentReq) decode() (*ai.Attachment, error) {
	raw, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, err
	}
	return &ai.Attachment{MIMEType: a.MIMEType, Data: raw}, nil
}

// ListChatSessions loads the user's session list (synthesizing the
// first session for a fresh user) and reconciles the active-session
// marker: a missing or stale marker snaps to the newest session.
func (h *Handler) ListChatSessions(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}

	sessions, err := h.ChatSvc.LoadForUser(c.Request.Context(), username)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to load sessions")
		return
	}

	active, err := h.Redis.ActiveSession(c.Request.Context(), username)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
		return
	}
	if !sessionListContains(sessions, active) {
		active = sessions[0].SessionID
		if err := h.Redis.SetActiveSession(c.Request.Context(), username, active); err != nil {
			common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
			return
		}
	}

	common.OK(c, gin.H{
		"sessions":          sessions,
		"active_session_id": active,
	})
}

func sessionListContains(sessions []chat.Session, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	for _, s := range sessions {
		if s.SessionID == sessionID {
			return true
		}
	}
	return false
}

func (h *Handler) CreateChatSession(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}

	sess, err := h.ChatSvc.CreateSession(c.Request.Context(), username)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to create session")
		return
	}
	if err := h.Redis.SetActiveSession(c.Request.Context(), username, sess.SessionID); err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
		return
	}

	common.OK(c, gin.H{"session": sess, "active_session_id": sess.SessionID})
}

// DeleteChatSession deletes a session (the client has already asked the
// user to confirm). Deleting an unknown id is a no-op; deleting the
// last session leaves a fresh replacement; deleting the active session
// activates the newest remaining one.
func (h *Handler) DeleteChatSession(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}
	sessionID := c.Param("session_id")

	sessions, deleted, err := h.ChatSvc.DeleteSession(c.Request.Context(), username, sessionID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to delete session")
		return
	}

	active, err := h.Redis.ActiveSession(c.Request.Context(), username)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
		return
	}
	if !sessionListContains(sessions, active) {
		active = sessions[0].SessionID
		if err := h.Redis.SetActiveSession(c.Request.Context(), username, active); err != nil {
			common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "storage unavailable")
			return
		}
	}

	common.OK(c, gin.H{
		"deleted":           deleted,
		"sessions":          sessions,
		"active_session_id": active,
	})
}

func (h *Handler) ListChatMessages(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}
	sessionID := c.Param("session_id")

	msgs, err := h.ChatSvc.ListMessages(c.Request.Context(), username, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to list messages")
		return
	}

	common.OK(c, gin.H{"messages": msgs})
}

type sendMessageReq struct {
	SessionID  string         `json:"session_id" binding:"required"`
	Message    string         `json:"message"`
	Model      string         `json:"model"`
	UseSearch  bool           `json:"use_search"`
	UseMaps    bool           `json:"use_maps"`
	Attachment *attachmentReq `json:"attachment"`
}

// SendChatMessage is the synchronous dispatch path. The maps location
// hint is read from the cache only; a miss kicks off a background
// lookup so the next maps request benefits, but this one never waits.
func (h *Handler) SendChatMessage(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" && req.Attachment == nil {
		common.Fail(c, http.StatusBadRequest, common.CodeMissingField, "message or attachment required")
		return
	}

	opts := chat.SendOptions{
		Tier:      req.Model,
		UseSearch: req.UseSearch,
		UseMaps:   req.UseMaps,
	}
	if req.Attachment != nil {
		att, err := req.Attachment.decode()
		if err != nil {
			common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid attachment encoding")
			return
		}
		opts.Attachment = att
	}
	if req.UseMaps {
		opts.Location = h.cachedOrResolveLocation(c, username)
	}

	assistant, err := h.ChatSvc.SendMessage(c.Request.Context(), username, req.SessionID, req.Message, opts)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "session not found")
			return
		}
		if errors.Is(err, chat.ErrUpstream) {
			common.Fail(c, http.StatusBadGateway, common.CodeRequestFailed, "failed to get response: "+err.Error())
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to send message")
		return
	}

	common.OK(c, gin.H{
		"session_id": req.SessionID,
		"message":    assistant,
	})
}

// cachedOrResolveLocation returns the cached geolocation hint if one
// exists. On a miss it resolves the client IP in the background and
// returns nil: the first maps request goes out without a hint, later
// ones pick up the cached fix.
func (h *Handler) cachedOrResolveLocation(c *gin.Context, username string) *ai.LatLng {
	loc, err := h.Redis.Location(c.Request.Context(), username)
	if err != nil {
		log.Printf("[SendChatMessage] location cache read user=%s err=%v", username, err)
		return nil
	}
	if loc != nil {
		return loc
	}

	ip := c.ClientIP()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		resolved, err := h.Locator.Lookup(ctx, ip)
		if err != nil {
			log.Printf("[geo] lookup ip=%s user=%s err=%v", ip, username, err)
			return
		}
		if err := h.Redis.SetLocation(ctx, username, *resolved, locationCacheTTL); err != nil {
			log.Printf("[geo] cache write user=%s err=%v", username, err)
		}
	}()
	return nil
}

// RevertLastMessage drops the session's trailing user message, if any.
func (h *Handler) RevertLastMessage(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}
	sessionID := c.Param("session_id")

	if err := h.ChatSvc.RevertLastUserMessage(c.Request.Context(), username, sessionID); err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "failed to revert message")
		return
	}
	common.OK(c, gin.H{"session_id": sessionID})
}

type sendMessageAsyncReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Model     string `json:"model"`
	UseSearch bool   `json:"use_search"`
	UseMaps   bool   `json:"use_maps"`
}

// SendChatMessageAsync stores the user message immediately and queues
// the reply generation. An Idempotency-Key header makes resubmission
// safe.
func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}

	var req sendMessageAsyncReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, common.CodeMissingField, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	userMsg, err := h.ChatSvc.AppendUserMessage(c.Request.Context(), username, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "session not found")
			return
		}
		log.Printf("[SendChatMessageAsync] append user=%s session=%s err=%v", username, req.SessionID, err)
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "internal error")
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "internal error")
		return
	}

	j := &chat.Job{
		ID:             jobID,
		Username:       username,
		SessionID:      req.SessionID,
		Prompt:         req.Message,
		Tier:           req.Model,
		UseSearch:      req.UseSearch,
		UseMaps:        req.UseMaps,
		UserMessageID:  userMsg.ID,
		IdempotencyKey: idempoKeyPtr,
		Status:         chat.JobQueued,
	}

	job, created, err := h.ChatSvc.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[SendChatMessageAsync] create job user=%s session=%s err=%v", username, req.SessionID, err)
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "internal error")
		return
	}

	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
			log.Printf("[SendChatMessageAsync] publish user=%s job=%s err=%v", username, job.ID, err)
			common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	username, ok := usernameFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, "unauthorized")
		return
	}
	jobID := c.Param("job_id")

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeStorageUnavailable, "internal error")
		return
	}
	if j.Username != username {
		// hide existence
		common.Fail(c, http.StatusNotFound, common.CodeNotFound, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"session_id":        j.SessionID,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}
