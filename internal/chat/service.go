package chat

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/orionai/orion/internal/ai"
)

// Model tiers selectable per message.
const (
	TierFlashLite = "flash-lite"
	TierFlash     = "flash"
	TierPro       = "pro"
)

// ErrUpstream marks a failed call to the generation API. The session is
// rolled back to its pre-request state before this is returned.
var ErrUpstream = errors.New("upstream generation failed")

type Service struct {
	repo              *Repo
	registry          *ai.Registry
	contextWindowSize int
}

func NewService(repo *Repo, registry *ai.Registry, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{repo: repo, registry: registry, contextWindowSize: contextWindowSize}
}

// SendOptions are the per-dispatch knobs: model tier, augmentation flags
// and an optional single attachment.
type SendOptions struct {
	Tier       string
	UseSearch  bool
	UseMaps    bool
	Attachment *ai.Attachment
	Location   *ai.LatLng
}

func (s *Service) providerForTier(ctx context.Context, tier string) (ai.Provider, error) {
	if tier == "" {
		tier = TierFlash
	}
	return s.registry.Get(ctx, tier)
}

// LoadForUser returns the user's sessions newest first. A user never has
// an empty list: when nothing is stored, one fresh "New Chat" session is
// synthesized.
func (s *Service) LoadForUser(ctx context.Context, username string) ([]Session, error) {
	sessions, err := s.repo.ListSessionsDesc(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		fresh, err := s.CreateSession(ctx, username)
		if err != nil {
			return nil, err
		}
		sessions = []Session{*fresh}
	}
	return sessions, nil
}

func (s *Service) CreateSession(ctx context.Context, username string) (*Session, error) {
	sid, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	session := &Session{
		SessionID: sid,
		Username:  username,
		Title:     DefaultTitle,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session (a missing id is a no-op) and returns
// the remaining list, which is never empty: deleting the last session
// synthesizes a replacement.
func (s *Service) DeleteSession(ctx context.Context, username, sessionID string) ([]Session, bool, error) {
	deleted, err := s.repo.DeleteSession(ctx, username, sessionID)
	if err != nil {
		return nil, false, err
	}
	sessions, err := s.LoadForUser(ctx, username)
	if err != nil {
		return nil, deleted, err
	}
	return sessions, deleted, nil
}

// AppendUserMessage appends to the named session. The session's first
// message sets its title.
func (s *Service) AppendUserMessage(ctx context.Context, username, sessionID, text string) (*Message, error) {
	if _, err := s.repo.GetSession(ctx, username, sessionID); err != nil {
		return nil, err
	}
	prior, err := s.repo.CountMessages(ctx, username, sessionID)
	if err != nil {
		return nil, err
	}
	m := &Message{
		SessionID: sessionID,
		Username:  username,
		Role:      "user",
		Content:   text,
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	if prior == 0 {
		if err := s.repo.UpdateSessionTitle(ctx, username, sessionID, titleForFirstMessage(text)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// AppendAssistantMessage appends a reply to the named session. A session
// deleted while the reply was in flight makes this a no-op: the message
// is returned unsaved (ID zero).
func (s *Service) AppendAssistantMessage(ctx context.Context, username, sessionID, text string, sources []ai.Source) (*Message, error) {
	m := &Message{
		SessionID: sessionID,
		Username:  username,
		Role:      "assistant",
		Content:   text,
		Sources:   SourceList(sources),
	}
	if _, err := s.repo.GetSession(ctx, username, sessionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return m, nil
		}
		return nil, err
	}
	if err := s.repo.InsertMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RevertLastUserMessage removes the session's newest message if it is a
// user message. Anything else (missing session, empty session, assistant
// tail) is a no-op.
func (s *Service) RevertLastUserMessage(ctx context.Context, username, sessionID string) error {
	last, err := s.repo.LastMessage(ctx, username, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if last.Role != "user" {
		return nil
	}
	return s.repo.DeleteMessageByID(ctx, last.ID)
}

func (s *Service) transcript(ctx context.Context, username, sessionID string) ([]ai.Message, error) {
	recentDesc, err := s.repo.ListRecentMessagesDesc(ctx, username, sessionID, s.contextWindowSize)
	if err != nil {
		return nil, err
	}
	// reverse to ASC (oldest -> newest)
	msgs := make([]ai.Message, 0, len(recentDesc))
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		msgs = append(msgs, ai.Message{Role: m.Role, Content: m.Content})
	}
	return msgs, nil
}

// SendMessage is the synchronous dispatch path: append the user message,
// forward the transcript to the provider, fold the reply back in. A
// provider failure rolls the session back to its pre-request message
// sequence (the title, once set, stays) and reports ErrUpstream. At most
// one request, no retry.
func (s *Service) SendMessage(ctx context.Context, username, sessionID, text string, opts SendOptions) (*Message, error) {
	provider, err := s.providerForTier(ctx, opts.Tier)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.AppendUserMessage(ctx, username, sessionID, text)
	if err != nil {
		return nil, err
	}

	msgs, err := s.transcript(ctx, username, sessionID)
	if err != nil {
		return nil, err
	}

	reply, err := provider.GenerateChat(ctx, ai.ChatRequest{
		Messages:          msgs,
		Attachment:        opts.Attachment,
		UseSearch:         opts.UseSearch,
		UseMaps:           opts.UseMaps,
		Location:          opts.Location,
		SystemInstruction: systemPrompt(username),
	})
	if err != nil {
		_ = s.repo.DeleteMessageByID(ctx, userMsg.ID)
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err.Error())
	}

	return s.AppendAssistantMessage(ctx, username, sessionID, reply.Text, reply.Sources)
}

// GenerateAssistantReply is the worker-side half of async dispatch: the
// user message is already stored, so only the reply is generated and
// appended.
func (s *Service) GenerateAssistantReply(ctx context.Context, username, sessionID string, opts SendOptions) (*Message, error) {
	if _, err := s.repo.GetSession(ctx, username, sessionID); err != nil {
		return nil, err
	}
	provider, err := s.providerForTier(ctx, opts.Tier)
	if err != nil {
		return nil, err
	}
	msgs, err := s.transcript(ctx, username, sessionID)
	if err != nil {
		return nil, err
	}
	reply, err := provider.GenerateChat(ctx, ai.ChatRequest{
		Messages:          msgs,
		UseSearch:         opts.UseSearch,
		UseMaps:           opts.UseMaps,
		Location:          opts.Location,
		SystemInstruction: systemPrompt(username),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUpstream, err.Error())
	}
	return s.AppendAssistantMessage(ctx, username, sessionID, reply.Text, reply.Sources)
}

// ListMessages returns the full conversation, oldest first.
func (s *Service) ListMessages(ctx context.Context, username, sessionID string) ([]Message, error) {
	if _, err := s.repo.GetSession(ctx, username, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessagesAsc(ctx, username, sessionID)
}

func (s *Service) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	return s.repo.CreateJobOrGetExisting(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

func systemPrompt(username string) string {
	return fmt.Sprintf(
		"You are OrionAI, a friendly and capable multimodal assistant. "+
			"You are chatting with %s; address them by name when it feels natural. "+
			"Answer concisely, and when web search or maps results informed your "+
			"answer, say so.", username)
}
