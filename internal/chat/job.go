package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued assistant-reply generation. The user message is
// written at submit time; UserMessageID lets a failed job roll it back,
// matching the synchronous dispatch contract.
type Job struct {
	ID string `gorm:"primaryKey;size:26"` // ULID length

	Username  string `gorm:"type:varchar(64);index;not null"`
	SessionID string `gorm:"size:26;index;not null"`

	Prompt    string `gorm:"type:text;not null"`
	Tier      string `gorm:"type:varchar(16);not null"`
	UseSearch bool
	UseMaps   bool

	UserMessageID uint64 `gorm:"index"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_user_idempo,unique" json:"idempotency_key"`

	Status JobStatus `gorm:"type:varchar(16);index;not null"`

	// Filled when succeeded
	ResultMessageID *uint64 `gorm:"index"`

	// Filled when failed
	Error *string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
