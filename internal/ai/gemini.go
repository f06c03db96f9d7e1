package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Chat model tiers and the single-shot media models behind the tool
// endpoints.
const (
	ModelFlashLite = "gemini-flash-lite-latest"
	ModelFlash     = "gemini-2.5-flash"
	ModelPro       = "gemini-2.5-pro"

	ModelImageEdit = "gemini-2.5-flash-image"
	ModelImagen    = "imagen-4.0-generate-001"
	ModelTTS       = "gemini-2.5-flash-preview-tts"
)

// proThinkingBudget matches the thinking budget the pro tier runs with.
const proThinkingBudget = 32768

type GeminiProvider struct {
	BaseURL   string
	APIKey    string
	ChatModel string
	Client    *http.Client
}

func NewGeminiProvider(baseURL, apiKey, chatModel string) *GeminiProvider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if chatModel == "" {
		chatModel = ModelFlash
	}
	return &GeminiProvider{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		ChatModel: chatModel,
		Client:    &http.Client{Timeout: 120 * time.Second},
	}
}

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
	GoogleMaps   *struct{} `json:"googleMaps,omitempty"`
}

type geminiRetrievalConfig struct {
	LatLng *LatLng `json:"latLng,omitempty"`
}

type geminiToolConfig struct {
	RetrievalConfig *geminiRetrievalConfig `json:"retrievalConfig,omitempty"`
}

type geminiThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type geminiPrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig *geminiPrebuiltVoiceConfig `json:"prebuiltVoiceConfig,omitempty"`
}

type geminiSpeechConfig struct {
	VoiceConfig *geminiVoiceConfig `json:"voiceConfig,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string              `json:"responseModalities,omitempty"`
	ThinkingConfig     *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
	SpeechConfig       *geminiSpeechConfig   `json:"speechConfig,omitempty"`
}

type geminiGenerateReq struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
	ToolConfig        *geminiToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGroundingSite struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web  *geminiGroundingSite `json:"web,omitempty"`
				Maps *geminiGroundingSite `json:"maps,omitempty"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (p *GeminiProvider) generateContent(ctx context.Context, model string, reqBody geminiGenerateReq) (*geminiGenerateResp, error) {
	if p.Client == nil {
		return nil, errors.New("gemini: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.BaseURL, "/"), model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("gemini: %s", msg)
	}

	var decoded geminiGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	return &decoded, nil
}

// GenerateChat sends one role-tagged transcript and folds the response
// into text plus uniform {title, uri} citations. Citations without a URI
// are dropped.
func (p *GeminiProvider) GenerateChat(ctx context.Context, req ChatRequest) (*ChatReply, error) {
	contents := make([]geminiContent, 0, len(req.Messages))
	for i, m := range req.Messages {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		parts := []geminiPart{{Text: m.Content}}
		// The attachment rides with the newest user message only; prior
		// history stays text-only.
		if i == len(req.Messages)-1 && req.Attachment != nil {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MIMEType: req.Attachment.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(req.Attachment.Data),
			}})
		}
		contents = append(contents, geminiContent{Role: role, Parts: parts})
	}

	body := geminiGenerateReq{Contents: contents}

	if req.SystemInstruction != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	if req.UseSearch {
		body.Tools = append(body.Tools, geminiTool{GoogleSearch: &struct{}{}})
	}
	if req.UseMaps {
		body.Tools = append(body.Tools, geminiTool{GoogleMaps: &struct{}{}})
		if req.Location != nil {
			body.ToolConfig = &geminiToolConfig{
				RetrievalConfig: &geminiRetrievalConfig{LatLng: req.Location},
			}
		}
	}
	if p.ChatModel == ModelPro {
		body.GenerationConfig = &geminiGenerationConfig{
			ThinkingConfig: &geminiThinkingConfig{ThinkingBudget: proThinkingBudget},
		}
	}

	decoded, err := p.generateContent(ctx, p.ChatModel, body)
	if err != nil {
		return nil, err
	}
	if len(decoded.Candidates) == 0 {
		return nil, errors.New("gemini: empty response")
	}

	cand := decoded.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		sb.WriteString(part.Text)
	}

	reply := &ChatReply{Text: sb.String()}
	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			site := chunk.Web
			if site == nil {
				site = chunk.Maps
			}
			if site == nil || site.URI == "" {
				continue
			}
			reply.Sources = append(reply.Sources, Source{Title: site.Title, URI: site.URI})
		}
	}
	return reply, nil
}
