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
)

// Single-shot media operations. Each mirrors one tool panel: one request,
// one response, no retries.

const transcriptionPrompt = "Transcribe the following audio recording."

type imagenInstance struct {
	Prompt string `json:"prompt"`
}

type imagenParameters struct {
	SampleCount    int    `json:"sampleCount"`
	AspectRatio    string `json:"aspectRatio,omitempty"`
	OutputMimeType string `json:"outputMimeType,omitempty"`
}

type imagenPredictReq struct {
	Instances  []imagenInstance `json:"instances"`
	Parameters imagenParameters `json:"parameters"`
}

type imagenPredictResp struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateImage renders one JPEG from a prompt via the imagen predict
// endpoint.
func (p *GeminiProvider) GenerateImage(ctx context.Context, prompt, aspectRatio string) ([]byte, string, error) {
	if p.Client == nil {
		return nil, "", errors.New("gemini: http client is nil")
	}
	if strings.TrimSpace(p.APIKey) == "" {
		return nil, "", errors.New("gemini: api key is required")
	}

	reqBody := imagenPredictReq{
		Instances: []imagenInstance{{Prompt: prompt}},
		Parameters: imagenParameters{
			SampleCount:    1,
			AspectRatio:    aspectRatio,
			OutputMimeType: "image/jpeg",
		},
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", err
	}

	url := fmt.Sprintf("%s/models/%s:predict", strings.TrimRight(p.BaseURL, "/"), ModelImagen)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, "", fmt.Errorf("gemini: %s", msg)
	}

	var decoded imagenPredictResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Predictions) == 0 {
		return nil, "", errors.New("gemini: no image generated")
	}

	pred := decoded.Predictions[0]
	raw, err := base64.StdEncoding.DecodeString(pred.BytesBase64Encoded)
	if err != nil {
		return nil, "", err
	}
	mime := pred.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return raw, mime, nil
}

// EditImage applies a prompt to an image and returns the edited image
// bytes from the first inline-data part.
func (p *GeminiProvider) EditImage(ctx context.Context, prompt string, image Attachment) ([]byte, string, error) {
	body := geminiGenerateReq{
		Contents: []geminiContent{{Parts: []geminiPart{
			{InlineData: &geminiInlineData{
				MIMEType: image.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(image.Data),
			}},
			{Text: prompt},
		}}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE"}},
	}

	decoded, err := p.generateContent(ctx, ModelImageEdit, body)
	if err != nil {
		return nil, "", err
	}
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, "", err
			}
			return raw, part.InlineData.MIMEType, nil
		}
	}
	return nil, "", errors.New("gemini: no image data in response")
}

func (p *GeminiProvider) analyzeInline(ctx context.Context, model, prompt string, att Attachment) (string, error) {
	body := geminiGenerateReq{
		Contents: []geminiContent{{Parts: []geminiPart{
			{InlineData: &geminiInlineData{
				MIMEType: att.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(att.Data),
			}},
			{Text: prompt},
		}}},
	}

	decoded, err := p.generateContent(ctx, model, body)
	if err != nil {
		return "", err
	}
	if len(decoded.Candidates) == 0 {
		return "", errors.New("gemini: empty response")
	}
	var sb strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

func (p *GeminiProvider) AnalyzeImage(ctx context.Context, prompt string, image Attachment) (string, error) {
	return p.analyzeInline(ctx, ModelFlash, prompt, image)
}

func (p *GeminiProvider) AnalyzeVideo(ctx context.Context, prompt string, video Attachment) (string, error) {
	return p.analyzeInline(ctx, ModelPro, prompt, video)
}

func (p *GeminiProvider) Transcribe(ctx context.Context, audio Attachment) (string, error) {
	return p.analyzeInline(ctx, ModelFlash, transcriptionPrompt, audio)
}

// GenerateSpeech synthesizes the text with the Kore prebuilt voice and
// returns raw audio bytes plus their MIME type.
func (p *GeminiProvider) GenerateSpeech(ctx context.Context, text string) ([]byte, string, error) {
	body := geminiGenerateReq{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: text}}}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &geminiSpeechConfig{
				VoiceConfig: &geminiVoiceConfig{
					PrebuiltVoiceConfig: &geminiPrebuiltVoiceConfig{VoiceName: "Kore"},
				},
			},
		},
	}

	decoded, err := p.generateContent(ctx, ModelTTS, body)
	if err != nil {
		return nil, "", err
	}
	for _, cand := range decoded.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil {
				continue
			}
			raw, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, "", err
			}
			return raw, part.InlineData.MIMEType, nil
		}
	}
	return nil, "", errors.New("gemini: no audio data in response")
}
