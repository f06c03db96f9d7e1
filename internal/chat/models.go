package chat

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/orionai/orion/internal/ai"
	"github.com/orionai/orion/internal/common"
)

const (
	// DefaultTitle is the title of a freshly created session. The first
	// user message overwrites it with its first 40 characters.
	DefaultTitle = "New Chat"

	// emptyTitleFallback labels sessions whose first message has no text
	// (attachment-only queries).
	emptyTitleFallback = "Image Query"

	titleRuneLimit = 40
)

type Session struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	SessionID string    `gorm:"type:varchar(26);uniqueIndex;not null" json:"session_id"`
	Username  string    `gorm:"type:varchar(64);index;not null" json:"-"`
	Title     string    `gorm:"type:varchar(64);not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// SourceList stores grounding citations as a JSON column.
type SourceList []ai.Source

func (s SourceList) Value() (driver.Value, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *SourceList) Scan(value any) error {
	if value == nil {
		*s = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("chat: unsupported source column type")
	}
	if len(raw) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(raw, s)
}

type Message struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string     `gorm:"type:varchar(26);not null;index:idx_chat_msg_user_session_id,priority:2" json:"session_id"`
	Username  string     `gorm:"type:varchar(64);not null;index:idx_chat_msg_user_session_id,priority:1" json:"-"`
	Role      string     `gorm:"type:varchar(16);index;not null" json:"role"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Sources   SourceList `gorm:"type:text" json:"sources,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// NewSessionID mints a session id. ULIDs sort by creation time, which is
// what keeps the session list newest-first.
func NewSessionID() (string, error) {
	return common.NewULID()
}

// titleForFirstMessage derives a session title from its first user
// message: the first 40 characters, or a fixed label when the message
// has no text.
func titleForFirstMessage(text string) string {
	runes := []rune(text)
	if len(runes) > titleRuneLimit {
		runes = runes[:titleRuneLimit]
	}
	title := string(runes)
	if title == "" {
		title = emptyTitleFallback
	}
	return title
}
