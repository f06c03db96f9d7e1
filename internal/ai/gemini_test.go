package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newCapturingServer(t *testing.T, respBody string, captured *geminiGenerateReq, gotPath *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotPath != nil {
			*gotPath = r.URL.Path
		}
		if r.Header.Get("x-goog-api-key") == "" {
			t.Errorf("missing api key header")
		}
		if captured != nil {
			if err := json.NewDecoder(r.Body).Decode(captured); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respBody))
	}))
}

func textResp(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":"` + text + `"}]}}]}`
}

func TestGenerateChat_RequestShaping(t *testing.T) {
	var got geminiGenerateReq
	srv := newCapturingServer(t, textResp("ok"), &got, nil)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", ModelFlash)
	reply, err := p.GenerateChat(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "what is this?"},
		},
		Attachment:        &Attachment{MIMEType: "image/png", Data: []byte{1, 2, 3}},
		UseSearch:         true,
		UseMaps:           true,
		Location:          &LatLng{Latitude: 48.2, Longitude: 16.4},
		SystemInstruction: "be brief",
	})
	if err != nil {
		t.Fatalf("GenerateChat: %v", err)
	}
	if reply.Text != "ok" {
		t.Fatalf("reply text = %q", reply.Text)
	}

	if len(got.Contents) != 3 {
		t.Fatalf("contents len = %d", len(got.Contents))
	}
	if got.Contents[0].Role != "user" || got.Contents[1].Role != "model" || got.Contents[2].Role != "user" {
		t.Fatalf("roles = %s/%s/%s", got.Contents[0].Role, got.Contents[1].Role, got.Contents[2].Role)
	}
	for i := 0; i < 2; i++ {
		for _, part := range got.Contents[i].Parts {
			if part.InlineData != nil {
				t.Fatalf("message %d carries inline data", i)
			}
		}
	}
	last := got.Contents[2]
	if len(last.Parts) != 2 || last.Parts[1].InlineData == nil {
		t.Fatalf("last message missing inline data: %+v", last.Parts)
	}
	if last.Parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte{1, 2, 3}) {
		t.Fatalf("inline data = %q", last.Parts[1].InlineData.Data)
	}

	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("system instruction not forwarded: %+v", got.SystemInstruction)
	}

	var haveSearch, haveMaps bool
	for _, tool := range got.Tools {
		if tool.GoogleSearch != nil {
			haveSearch = true
		}
		if tool.GoogleMaps != nil {
			haveMaps = true
		}
	}
	if !haveSearch || !haveMaps {
		t.Fatalf("tools = %+v", got.Tools)
	}
	if got.ToolConfig == nil || got.ToolConfig.RetrievalConfig == nil || got.ToolConfig.RetrievalConfig.LatLng == nil {
		t.Fatalf("tool config missing lat/lng")
	}
	if got.ToolConfig.RetrievalConfig.LatLng.Latitude != 48.2 {
		t.Fatalf("latitude = %v", got.ToolConfig.RetrievalConfig.LatLng.Latitude)
	}
}

func TestGenerateChat_NoToolsByDefault(t *testing.T) {
	var got geminiGenerateReq
	srv := newCapturingServer(t, textResp("ok"), &got, nil)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", ModelFlash)
	if _, err := p.GenerateChat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("GenerateChat: %v", err)
	}
	if len(got.Tools) != 0 || got.ToolConfig != nil {
		t.Fatalf("unexpected tools on plain request: %+v %+v", got.Tools, got.ToolConfig)
	}
	if got.GenerationConfig != nil {
		t.Fatalf("unexpected generation config on flash tier")
	}
}

func TestGenerateChat_ProThinkingBudget(t *testing.T) {
	var got geminiGenerateReq
	var path string
	srv := newCapturingServer(t, textResp("ok"), &got, &path)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", ModelPro)
	if _, err := p.GenerateChat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err != nil {
		t.Fatalf("GenerateChat: %v", err)
	}
	if !strings.Contains(path, ModelPro) {
		t.Fatalf("path = %q", path)
	}
	if got.GenerationConfig == nil || got.GenerationConfig.ThinkingConfig == nil {
		t.Fatalf("thinking config not set for pro tier")
	}
	if got.GenerationConfig.ThinkingConfig.ThinkingBudget != proThinkingBudget {
		t.Fatalf("thinking budget = %d", got.GenerationConfig.ThinkingConfig.ThinkingBudget)
	}
}

func TestGenerateChat_GroundingSources(t *testing.T) {
	resp := `{"candidates":[{
		"content":{"parts":[{"text":"answer"}]},
		"groundingMetadata":{"groundingChunks":[
			{"web":{"uri":"https://a.example","title":"A"}},
			{"maps":{"uri":"https://maps.example/b","title":"B"}},
			{"web":{"uri":"","title":"no uri"}},
			{}
		]}
	}]}`
	srv := newCapturingServer(t, resp, nil, nil)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", ModelFlash)
	reply, err := p.GenerateChat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("GenerateChat: %v", err)
	}
	if len(reply.Sources) != 2 {
		t.Fatalf("sources = %+v", reply.Sources)
	}
	if reply.Sources[0].URI != "https://a.example" || reply.Sources[1].Title != "B" {
		t.Fatalf("sources = %+v", reply.Sources)
	}
}

func TestGenerateChat_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", ModelFlash)
	_, err := p.GenerateChat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("err = %v", err)
	}
}

func TestGenerateChat_MissingAPIKey(t *testing.T) {
	p := NewGeminiProvider("http://localhost:1", "", ModelFlash)
	if _, err := p.GenerateChat(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Content: "hi"}},
	}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestGenerateImage_Predict(t *testing.T) {
	raw := []byte{0xff, 0xd8, 0xff}
	var path string
	var got imagenPredictReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"predictions":[{"bytesBase64Encoded":"` +
			base64.StdEncoding.EncodeToString(raw) + `","mimeType":"image/jpeg"}]}`))
	}))
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", "")
	img, mime, err := p.GenerateImage(context.Background(), "a red fox", "16:9")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !strings.HasSuffix(path, ModelImagen+":predict") {
		t.Fatalf("path = %q", path)
	}
	if len(got.Instances) != 1 || got.Instances[0].Prompt != "a red fox" {
		t.Fatalf("instances = %+v", got.Instances)
	}
	if got.Parameters.SampleCount != 1 || got.Parameters.AspectRatio != "16:9" {
		t.Fatalf("parameters = %+v", got.Parameters)
	}
	if mime != "image/jpeg" || string(img) != string(raw) {
		t.Fatalf("mime=%q len=%d", mime, len(img))
	}
}

func TestEditImage_ReturnsInlineData(t *testing.T) {
	edited := []byte("edited-bytes")
	var got geminiGenerateReq
	srv := newCapturingServer(t, `{"candidates":[{"content":{"parts":[
		{"text":"here you go"},
		{"inlineData":{"mimeType":"image/png","data":"`+base64.StdEncoding.EncodeToString(edited)+`"}}
	]}}]}`, &got, nil)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", "")
	img, mime, err := p.EditImage(context.Background(), "make it blue", Attachment{MIMEType: "image/png", Data: []byte{9}})
	if err != nil {
		t.Fatalf("EditImage: %v", err)
	}
	if mime != "image/png" || string(img) != "edited-bytes" {
		t.Fatalf("mime=%q img=%q", mime, img)
	}
	if got.GenerationConfig == nil || len(got.GenerationConfig.ResponseModalities) != 1 ||
		got.GenerationConfig.ResponseModalities[0] != "IMAGE" {
		t.Fatalf("generation config = %+v", got.GenerationConfig)
	}
}

func TestEditImage_NoImageInResponse(t *testing.T) {
	srv := newCapturingServer(t, textResp("sorry"), nil, nil)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", "")
	if _, _, err := p.EditImage(context.Background(), "x", Attachment{MIMEType: "image/png", Data: []byte{1}}); err == nil {
		t.Fatalf("expected error when no inline data returned")
	}
}

func TestTranscribe_UsesFixedPrompt(t *testing.T) {
	var got geminiGenerateReq
	srv := newCapturingServer(t, textResp("hello world"), &got, nil)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", "")
	text, err := p.Transcribe(context.Background(), Attachment{MIMEType: "audio/webm", Data: []byte{1, 2}})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q", text)
	}

	var prompt string
	for _, part := range got.Contents[0].Parts {
		if part.Text != "" {
			prompt = part.Text
		}
	}
	if prompt != transcriptionPrompt {
		t.Fatalf("prompt = %q", prompt)
	}
}

func TestGenerateSpeech_VoiceAndModality(t *testing.T) {
	audio := []byte("pcm-audio")
	var got geminiGenerateReq
	srv := newCapturingServer(t, `{"candidates":[{"content":{"parts":[
		{"inlineData":{"mimeType":"audio/L16;rate=24000","data":"`+base64.StdEncoding.EncodeToString(audio)+`"}}
	]}}]}`, &got, nil)
	defer srv.Close()

	p := NewGeminiProvider(srv.URL, "test-key", "")
	raw, mime, err := p.GenerateSpeech(context.Background(), "read this")
	if err != nil {
		t.Fatalf("GenerateSpeech: %v", err)
	}
	if string(raw) != "pcm-audio" || !strings.HasPrefix(mime, "audio/") {
		t.Fatalf("raw=%q mime=%q", raw, mime)
	}

	gc := got.GenerationConfig
	if gc == nil || len(gc.ResponseModalities) != 1 || gc.ResponseModalities[0] != "AUDIO" {
		t.Fatalf("generation config = %+v", gc)
	}
	if gc.SpeechConfig == nil || gc.SpeechConfig.VoiceConfig == nil ||
		gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig == nil ||
		gc.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Kore" {
		t.Fatalf("speech config = %+v", gc.SpeechConfig)
	}
}
