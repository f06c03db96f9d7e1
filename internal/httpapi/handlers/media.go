package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orionai/orion/internal/common"
)

// The media handlers are the single-shot tool panels: one request to
// the model, one response, no session state and no retries.

type generateImageReq struct {
	Prompt      string `json:"prompt" binding:"required"`
	AspectRatio string `json:"aspect_ratio"`
}

func (h *Handler) GenerateImage(c *gin.Context) {
	var req generateImageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	if req.AspectRatio == "" {
		req.AspectRatio = "1:1"
	}

	raw, mime, err := h.Media.GenerateImage(c.Request.Context(), req.Prompt, req.AspectRatio)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, common.CodeRequestFailed, "image generation failed: "+err.Error())
		return
	}

	common.OK(c, gin.H{
		"image":     base64.StdEncoding.EncodeToString(raw),
		"mime_type": mime,
	})
}

type imagePromptReq struct {
	Prompt string        `json:"prompt" binding:"required"`
	Image  attachmentReq `json:"image" binding:"required"`
}

func (h *Handler) EditImage(c *gin.Context) {
	var req imagePromptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	img, err := req.Image.decode()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid image encoding")
		return
	}

	raw, mime, err := h.Media.EditImage(c.Request.Context(), req.Prompt, *img)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, common.CodeRequestFailed, "image edit failed: "+err.Error())
		return
	}

	common.OK(c, gin.H{
		"image":     base64.StdEncoding.EncodeToString(raw),
		"mime_type": mime,
	})
}

func (h *Handler) AnalyzeImage(c *gin.Context) {
	var req imagePromptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	img, err := req.Image.decode()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid image encoding")
		return
	}

	text, err := h.Media.AnalyzeImage(c.Request.Context(), req.Prompt, *img)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, common.CodeRequestFailed, "image analysis failed: "+err.Error())
		return
	}

	common.OK(c, gin.H{"text": text})
}

type videoPromptReq struct {
	Prompt string        `json:"prompt" binding:"required"`
	Video  attachmentReq `json:"video" binding:"required"`
}

func (h *Handler) AnalyzeVideo(c *gin.Context) {
	var req videoPromptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	vid, err := req.Video.decode()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid video encoding")
		return
	}

	text, err := h.Media.AnalyzeVideo(c.Request.Context(), req.Prompt, *vid)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, common.CodeRequestFailed, "video analysis failed: "+err.Error())
		return
	}

	common.OK(c, gin.H{"text": text})
}

type speechReq struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) GenerateSpeech(c *gin.Context) {
	var req speechReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeMissingField, "text required")
		return
	}

	raw, mime, err := h.Media.GenerateSpeech(c.Request.Context(), req.Text)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, common.CodeRequestFailed, "speech synthesis failed: "+err.Error())
		return
	}

	common.OK(c, gin.H{
		"audio":     base64.StdEncoding.EncodeToString(raw),
		"mime_type": mime,
	})
}

type transcribeReq struct {
	Audio attachmentReq `json:"audio" binding:"required"`
}

func (h *Handler) TranscribeAudio(c *gin.Context) {
	var req transcribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid json")
		return
	}
	audio, err := req.Audio.decode()
	if err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeInvalidJSON, "invalid audio encoding")
		return
	}

	text, err := h.Media.Transcribe(c.Request.Context(), *audio)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, common.CodeTranscribeFailed, "transcription failed: "+err.Error())
		return
	}

	common.OK(c, gin.H{"text": text})
}
