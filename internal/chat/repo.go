package chat

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) CreateSession(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ListSessionsDesc returns the user's sessions newest first. ULID
// session ids sort by creation time, so ordering on them is ordering on
// creation.
func (r *Repo) ListSessionsDesc(ctx context.Context, username string) ([]Session, error) {
	var sessions []Session
	if err := r.db.WithContext(ctx).
		Where("username = ?", username).
		Order("session_id DESC").
		Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *Repo) GetSession(ctx context.Context, username, sessionID string) (*Session, error) {
	var s Session
	if err := r.db.WithContext(ctx).
		Where("username = ? AND session_id = ?", username, sessionID).
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteSession removes a session and its messages. Returns false when
// no session matched (already gone).
func (r *Repo) DeleteSession(ctx context.Context, username, sessionID string) (bool, error) {
	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("username = ? AND session_id = ?", username, sessionID).Delete(&Session{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0
		if !deleted {
			return nil
		}
		return tx.Where("username = ? AND session_id = ?", username, sessionID).Delete(&Message{}).Error
	})
	return deleted, err
}

func (r *Repo) UpdateSessionTitle(ctx context.Context, username, sessionID, title string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("username = ? AND session_id = ?", username, sessionID).
		Update("title", title).Error
}

func (r *Repo) InsertMessage(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) DeleteMessageByID(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Delete(&Message{}, id).Error
}

func (r *Repo) CountMessages(ctx context.Context, username, sessionID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&Message{}).
		Where("username = ? AND session_id = ?", username, sessionID).
		Count(&n).Error
	return n, err
}

// ListMessagesAsc returns the full message sequence, oldest first.
func (r *Repo) ListMessagesAsc(ctx context.Context, username, sessionID string) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("username = ? AND session_id = ?", username, sessionID).
		Order("id ASC").
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListRecentMessagesDesc returns the most recent messages in DESC id
// order (newest -> oldest).
func (r *Repo) ListRecentMessagesDesc(ctx context.Context, username, sessionID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	var msgs []Message
	if err := r.db.WithContext(ctx).
		Where("username = ? AND session_id = ?", username, sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repo) LastMessage(ctx context.Context, username, sessionID string) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).
		Where("username = ? AND session_id = ?", username, sessionID).
		Order("id DESC").
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// Job CRUD

func (r *Repo) CreateJob(ctx context.Context, job *Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status = ?", id, JobQueued).
		Update("status", JobRunning).Error
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, assistantMsgID uint64) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobSucceeded,
			"result_message_id": assistantMsgID,
			"error":             nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":            JobFailed,
			"error":             errMsg,
			"result_message_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, username, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("username = ? AND idempotency_key = ?", username, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (username,
// idempotency_key) already exists it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.Username, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
