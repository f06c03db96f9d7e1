package ai

import "context"

// Message is one turn of a role-tagged transcript. Role is "user" or
// "assistant"; the wire-level role mapping is provider business.
type Message struct {
	Role    string
	Content string
}

// Attachment is a single inline binary payload (image, audio or video)
// sent alongside the newest user message.
type Attachment struct {
	MIMEType string
	Data     []byte
}

type LatLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Source is a grounding citation attached to an assistant reply.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// ChatRequest carries one dispatch: the prior transcript plus the new
// user message (last element of Messages), augmentation flags and an
// optional location hint for maps grounding.
type ChatRequest struct {
	Messages          []Message
	Attachment        *Attachment
	UseSearch         bool
	UseMaps           bool
	Location          *LatLng
	SystemInstruction string
}

type ChatReply struct {
	Text    string
	Sources []Source
}

type Provider interface {
	GenerateChat(ctx context.Context, req ChatRequest) (*ChatReply, error)
}
