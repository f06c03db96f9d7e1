package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orionai/orion/internal/common"
	"github.com/orionai/orion/internal/email"
)

type contactReq struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// Contact forwards a contact-form submission to the support mailbox.
func (h *Handler) Contact(c *gin.Context) {
	var req contactReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}

	subject := fmt.Sprintf("OrionAI contact form: %s", req.Name)
	body := fmt.Sprintf("From: %s <%s>\n\n%s\n", req.Name, req.Email, req.Message)

	if err := email.SendText(h.SMTPSetting, h.Cfg.ContactDest, subject, body); err != nil {
		common.Fail(c, http.StatusBadGateway, common.CodeMailFailed, "failed to send message")
		return
	}

	common.OK(c, gin.H{"sent": true})
}

// About returns the static app description the about panel renders.
func (h *Handler) About(c *gin.Context) {
	common.OK(c, gin.H{
		"name":        "OrionAI",
		"description": "A multimodal assistant for chat, image generation and editing, video analysis, transcription and speech synthesis.",
		"tools": []string{
			"chat", "image-generation", "image-studio", "video-analysis",
			"audio-transcription", "text-to-speech",
		},
	})
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
